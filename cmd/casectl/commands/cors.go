package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/models"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options (stored in database).",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(db *database.DB) error {
				return runCorsList(cmd.Context(), cmd.OutOrStdout(), database.NewCorsConfigRepository(db))
			})
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	c := &models.CorsConfig{}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated). Stored in database; running servers pick it up within a minute.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.AllowedOrigins = strings.TrimSpace(c.AllowedOrigins)
			if c.AllowedOrigins == "" {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			return withDatabase(cmd, func(db *database.DB) error {
				return runCorsSet(cmd.Context(), cmd.OutOrStdout(), database.NewCorsConfigRepository(db), c)
			})
		},
	}
	cmd.Flags().StringVar(&c.AllowedOrigins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&c.AllowCredentials, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&c.MaxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}

func runCorsList(ctx context.Context, out io.Writer, store database.CorsConfigStore) error {
	c, err := store.Get(ctx)
	if err != nil {
		return fmt.Errorf("get cors config: %w", err)
	}
	if c == nil {
		fmt.Fprintln(out, "No CORS configuration in database. Use 'cors set' to add one.")
		return nil
	}
	printCors(out, c)
	return nil
}

func runCorsSet(ctx context.Context, out io.Writer, store database.CorsConfigStore, c *models.CorsConfig) error {
	if err := database.ValidateOrigins(database.AllowedOriginsSlice(c.AllowedOrigins)); err != nil {
		return err
	}
	if err := store.Set(ctx, c); err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	fmt.Fprintln(out, "CORS configuration updated.")
	return nil
}

func printCors(out io.Writer, c *models.CorsConfig) {
	fmt.Fprintln(out, "CORS configuration:")
	fmt.Fprintf(out, "  Allowed origins: %s\n", c.AllowedOrigins)
	fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
	fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
}
