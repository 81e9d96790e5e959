package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tensai-22/penal-sub001/internal/backend"
	"github.com/tensai-22/penal-sub001/internal/cases"
	"github.com/tensai-22/penal-sub001/internal/models"
)

type evaluateOptions struct {
	evaluatorFlags
	file    string
	output  string
	sorted  bool
	explain bool
}

// NewEvaluateCmd creates the offline evaluate command
func NewEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate [fecha_atencion plazo_atencion]",
		Short: "Evaluate deadline urgency offline",
		Long: "Evaluate one deadline given as arguments, or every case record in a JSON file.\n" +
			"The file holds an array of records or an object wrapping them under \"data\" or \"items\"; \"-\" reads stdin.\n" +
			"All records are evaluated against the same instant.",
		Example: `  casectl evaluate 2024-01-01 5 --now "2024-01-03 10:00"
  casectl evaluate 2024-01-01 "15-03-2025 02:30 PM" --explain
  casectl evaluate --file cases.json --sorted --output json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.file != "" {
				if len(args) != 0 {
					return errors.New("arguments cannot be combined with --file")
				}
				return nil
			}
			if len(args) != 2 {
				return errors.New("expected fecha_atencion and plazo_atencion, or --file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, opts, args)
		},
	}
	opts.register(cmd)
	opts.registerNow(cmd)
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "JSON file of case records (\"-\" for stdin)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table or json")
	cmd.Flags().BoolVar(&opts.sorted, "sorted", false, "Order records most urgent first")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Print why a deadline could not be evaluated")
	return cmd
}

func runEvaluate(cmd *cobra.Command, opts *evaluateOptions, args []string) error {
	if err := checkOutput(opts.output); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ev, err := opts.evaluator(cfg)
	if err != nil {
		return err
	}

	var records []models.CaseRecord
	if opts.file != "" {
		data, err := readInput(cmd, opts.file)
		if err != nil {
			return err
		}
		records, err = backend.DecodeCases(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", opts.file, err)
		}
	} else {
		records = []models.CaseRecord{{
			FechaAtencion: models.FlexString(args[0]),
			PlazoAtencion: models.FlexString(args[1]),
		}}
	}

	// evaluation never reaches the backend
	service := cases.NewService(nil, nil, ev, nil, newLogger(cmd))
	now := ev.Now()
	views := service.EvaluateRecords(now, records, "")
	if opts.sorted {
		cases.SortByUrgency(views)
	}

	out := cmd.OutOrStdout()
	if opts.output == outputJSON {
		if err := writeJSON(out, struct {
			Items       []models.CaseView `json:"items"`
			EvaluatedAt time.Time         `json:"evaluated_at"`
		}{Items: views, EvaluatedAt: now}); err != nil {
			return err
		}
	} else if err := writeCaseTable(out, views); err != nil {
		return err
	}

	if opts.explain {
		for _, rec := range records {
			if _, err := ev.Explain(now, rec.FechaAtencion.String(), rec.PlazoAtencion.String()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", orDash(rec.RegistroPPU), err)
			}
		}
	}
	return nil
}
