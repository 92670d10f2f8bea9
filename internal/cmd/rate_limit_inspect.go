package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/notifyd/notifyd/internal/output"
	"github.com/notifyd/notifyd/internal/ratelimit"
)

var rateLimitInspectOutput string

var rateLimitInspectCmd = &cobra.Command{
	Use:   "inspect <client-key>",
	Short: "Show the stored bucket for a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitInspectOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		clientKey, err := clientKeyArg(args)
		if err != nil {
			return err
		}

		bucket, closeFn, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		state, found, err := bucket.Inspect(cmd.Context(), clientKey)
		if err != nil {
			return err
		}

		return writeBucketState(cmd.OutOrStdout(), format, bucket, clientKey, state, found)
	},
}

type bucketView struct {
	ClientKey  string     `json:"client_key"`
	Found      bool       `json:"found"`
	Tokens     *float64   `json:"tokens,omitempty"`
	LastRefill *time.Time `json:"last_refill,omitempty"`
}

func writeBucketState(w io.Writer, format output.Format, bucket *ratelimit.TokenBucket, clientKey string, state ratelimit.BucketState, found bool) error {
	view := bucketView{ClientKey: clientKey, Found: found}
	if found {
		tokens := state.Tokens
		refill := state.LastRefillTime()
		view.Tokens = &tokens
		view.LastRefill = &refill
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	lines := []string{"Rate Limit Bucket", "", "client: " + clientKey, bucketConfigLine(bucket)}
	if !found {
		lines = append(lines, "(no stored bucket; client is at full capacity)")
	} else {
		lines = append(lines,
			fmt.Sprintf("tokens: %.2f", state.Tokens),
			"last_refill: "+state.LastRefillTime().Format(time.RFC3339))
	}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func init() {
	rateLimitInspectCmd.Flags().StringVar(&rateLimitInspectOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
