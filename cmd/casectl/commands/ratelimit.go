package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/models"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the per-client rate limit of /api/v1 (e.g. 10-S, 300-M). Stored in database.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(db *database.DB) error {
				return runRatelimitList(cmd.Context(), cmd.OutOrStdout(), database.NewRatelimitConfigRepository(db))
			})
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update rate limit (e.g. 10-S, 300-M, 1000-H). Stored in database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 10-S, 300-M)")
			}
			if _, err := limiter.NewRateFromFormatted(rate); err != nil {
				return fmt.Errorf("invalid rate %q: %w", rate, err)
			}
			return withDatabase(cmd, func(db *database.DB) error {
				return runRatelimitSet(cmd.Context(), cmd.OutOrStdout(), database.NewRatelimitConfigRepository(db), rate)
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 10-S, 300-M, 1000-H) (required)")
	return cmd
}

func runRatelimitList(ctx context.Context, out io.Writer, store database.RatelimitConfigStore) error {
	c, err := store.Get(ctx)
	if err != nil {
		return fmt.Errorf("get ratelimit config: %w", err)
	}
	if c == nil {
		fmt.Fprintln(out, "No rate limit configuration in database. Use 'ratelimit set' to add one.")
		return nil
	}
	fmt.Fprintln(out, "Rate limit configuration:")
	fmt.Fprintf(out, "  Rate: %s\n", c.Rate)
	return nil
}

func runRatelimitSet(ctx context.Context, out io.Writer, store database.RatelimitConfigStore, rate string) error {
	if err := store.Set(ctx, &models.RatelimitConfig{Rate: rate}); err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	fmt.Fprintln(out, "Rate limit configuration updated.")
	return nil
}
