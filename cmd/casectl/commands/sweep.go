package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/queue"
)

// NewSweepCmd creates the sweep command with enqueue, list and get subcommands
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run and inspect urgency sweeps",
		Long:  "Queue an urgency sweep for the worker, or show the history of sweep runs.",
	}
	cmd.AddCommand(newSweepEnqueueCmd())
	cmd.AddCommand(newSweepListCmd())
	cmd.AddCommand(newSweepGetCmd())
	return cmd
}

func newSweepEnqueueCmd() *cobra.Command {
	var filter models.CaseFilter
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue an urgency sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if delay < 0 {
				return errors.New("--delay cannot be negative")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RabbitMQURL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, newLogger(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()
			return runSweepEnqueue(cmd.Context(), cmd.OutOrStdout(), q, filter, delay, time.Now())
		},
	}
	registerFilterFlags(cmd, &filter)
	cmd.Flags().DurationVar(&delay, "delay", 0, "Start the sweep after this delay (e.g. 10m)")
	return cmd
}

func newSweepListCmd() *cobra.Command {
	var page, pageSize int
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sweep runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if page < 1 || pageSize < 1 {
				return errors.New("--page and --page-size must be positive")
			}
			return withDatabase(cmd, func(db *database.DB) error {
				return runSweepList(cmd.Context(), cmd.OutOrStdout(), database.NewSweepRunRepository(db), page, pageSize, output)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Runs per page")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

func newSweepGetCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one sweep run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return withDatabase(cmd, func(db *database.DB) error {
				run, err := database.NewSweepRunRepository(db).GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if output == outputJSON {
					return writeJSON(cmd.OutOrStdout(), run)
				}
				return writeSweepTable(cmd.OutOrStdout(), []*models.SweepRun{run})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

func runSweepEnqueue(ctx context.Context, out io.Writer, publisher queue.Publisher, filter models.CaseFilter, delay time.Duration, now time.Time) error {
	job := queue.NewSweepJob(filter, queue.TriggerManual)
	if delay > 0 {
		notBefore := now.Add(delay)
		job.NotBefore = &notBefore
	}
	if err := publisher.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue sweep: %w", err)
	}
	fmt.Fprintf(out, "Sweep job %s queued.\n", job.ID)
	return nil
}

func runSweepList(ctx context.Context, out io.Writer, runs database.SweepRunStore, page, pageSize int, output string) error {
	items, total, err := runs.ListRecent(ctx, page, pageSize)
	if err != nil {
		return fmt.Errorf("list sweep runs: %w", err)
	}
	if output == outputJSON {
		if items == nil {
			items = []*models.SweepRun{}
		}
		return writeJSON(out, struct {
			Items []*models.SweepRun `json:"items"`
			Total int                `json:"total"`
		}{Items: items, Total: total})
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No sweep runs recorded.")
		return nil
	}
	if err := writeSweepTable(out, items); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d of %d runs\n", len(items), total)
	return nil
}
