package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notifyd/notifyd/internal/config"
	"github.com/notifyd/notifyd/internal/ratelimit"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset per-client rate limit buckets",
}

func init() {
	rateLimitCmd.AddCommand(rateLimitInspectCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

// openBucket connects to the shared cache only; the database is not needed.
func openBucket() (*ratelimit.TokenBucket, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	kv := openKVStore(cfg.Cache)
	bucket := &ratelimit.TokenBucket{
		Store:    kv,
		Capacity: cfg.RateLimit.Capacity,
		Window:   cfg.RateLimit.Window,
	}
	return bucket, kv.Close, nil
}

func clientKeyArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("exactly one client key is required (e.g. an IP address)")
	}
	return strings.TrimSpace(args[0]), nil
}

func bucketConfigLine(bucket *ratelimit.TokenBucket) string {
	capacity := bucket.Capacity
	if capacity <= 0 {
		capacity = ratelimit.DefaultCapacity
	}
	window := bucket.Window
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	return fmt.Sprintf("limit: %d per %s (%s)", capacity, window, config.BinaryName)
}
