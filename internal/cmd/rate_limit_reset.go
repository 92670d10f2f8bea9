package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notifyd/notifyd/internal/output"
)

var (
	rateLimitResetYes    bool
	rateLimitResetOutput string
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset <client-key>",
	Short: "Delete the stored bucket so the client starts at full capacity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput)
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
		if !rateLimitResetYes {
			return errors.New("reset requires --yes")
		}

		bucket, closeFn, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		if err := bucket.Reset(cmd.Context(), clientKey); err != nil {
			return err
		}

		return writeRateLimitResetResult(cmd.OutOrStdout(), format, clientKey)
	},
}

func writeRateLimitResetResult(w io.Writer, format output.Format, clientKey string) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"client_key": clientKey,
			"reset":      true,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	_, err := fmt.Fprintf(w, "Reset rate limit bucket for %s\n", clientKey)
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
