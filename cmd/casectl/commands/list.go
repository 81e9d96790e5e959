package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tensai-22/penal-sub001/internal/database"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runtime configuration",
		Long:  "Show the CORS and rate limit settings stored in the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(db *database.DB) error {
				return runList(cmd.Context(), cmd.OutOrStdout(),
					database.NewCorsConfigRepository(db),
					database.NewRatelimitConfigRepository(db),
				)
			})
		},
	}
}

func runList(ctx context.Context, out io.Writer, cors database.CorsConfigStore, ratelimit database.RatelimitConfigStore) error {
	if err := runCorsList(ctx, out, cors); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return runRatelimitList(ctx, out, ratelimit)
}
