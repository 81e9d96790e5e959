package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tensai-22/penal-sub001/internal/backend"
	"github.com/tensai-22/penal-sub001/internal/cases"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

type backendFlags struct {
	evaluatorFlags
	url    string
	apiKey string
	output string
}

func (f *backendFlags) register(cmd *cobra.Command) {
	f.evaluatorFlags.register(cmd)
	f.registerNow(cmd)
	cmd.Flags().StringVar(&f.url, "backend-url", "", "Case backend base URL (default from BACKEND_URL)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "Case backend API key (default from BACKEND_API_KEY)")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputTable, "Output format: table or json")
}

// service builds a case service that talks to the backend directly, without a cache
func (f *backendFlags) service(cmd *cobra.Command) (*cases.Service, error) {
	if err := checkOutput(f.output); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if f.url != "" {
		cfg.BackendURL = f.url
	}
	if f.apiKey != "" {
		cfg.BackendAPIKey = f.apiKey
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is not set (use --backend-url)")
	}
	ev, err := f.evaluator(cfg)
	if err != nil {
		return nil, err
	}
	log := newLogger(cmd)
	client, err := backend.NewClient(cfg.BackendURL,
		backend.WithAPIKey(cfg.BackendAPIKey),
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithRetryMax(cfg.BackendRetries),
		backend.WithUserAgent("casectl"),
		backend.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	return cases.NewService(client, nil, ev, nil, log), nil
}

// NewCasesCmd creates the cases command with list, summary and get subcommands
func NewCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Inspect case records with their urgency",
		Long:  "Fetch case records from the backend and evaluate their deadlines locally.",
	}
	cmd.AddCommand(newCasesListCmd())
	cmd.AddCommand(newCasesSummaryCmd())
	cmd.AddCommand(newCasesGetCmd())
	return cmd
}

func registerFilterFlags(cmd *cobra.Command, filter *models.CaseFilter) {
	cmd.Flags().StringVar(&filter.Query, "query", "", "Free text search")
	cmd.Flags().StringVar(&filter.Abogado, "abogado", "", "Only cases of this lawyer")
	cmd.Flags().StringVar(&filter.Estado, "estado", "", "Only cases in this state")
	cmd.Flags().StringVar(&filter.Tab, "tab", "", "Backend tab")
}

func newCasesListCmd() *cobra.Command {
	var flags backendFlags
	var opts cases.ListOptions
	var class string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List case records, most urgent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := flags.service(cmd)
			if err != nil {
				return err
			}
			if class != "" {
				opts.Class = urgency.Class(class)
				if !isClass(opts.Class) {
					return fmt.Errorf("unknown urgency class %q", class)
				}
			}
			opts.Refresh = true
			page, err := service.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if flags.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			if err := writeCaseTable(cmd.OutOrStdout(), page.Items); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "\nPage %d of %d (%d records)\n", page.Page, page.TotalPages, page.Total)
			return nil
		},
	}
	flags.register(cmd)
	registerFilterFlags(cmd, &opts.Filter)
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", cases.DefaultPageSize, "Records per page")
	cmd.Flags().BoolVar(&opts.ActionableOnly, "actionable", false, "Hide records without a computable deadline")
	cmd.Flags().StringVar(&class, "class", "", "Only records of this urgency class")
	return cmd
}

func newCasesSummaryCmd() *cobra.Command {
	var flags backendFlags
	var filter models.CaseFilter
	var limit int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count case records per urgency class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := flags.service(cmd)
			if err != nil {
				return err
			}
			summary, err := service.Summary(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.output == outputJSON {
				return writeJSON(out, summary)
			}
			if err := writeSummaryTable(out, summary); err != nil {
				return err
			}
			if len(summary.MostUrgent) == 0 {
				return nil
			}
			printf(out, "\nMost urgent:\n")
			return writeCaseTable(out, summary.MostUrgent)
		},
	}
	flags.register(cmd)
	registerFilterFlags(cmd, &filter)
	cmd.Flags().IntVar(&limit, "limit", cases.DefaultMostUrgent, "How many of the most urgent records to list")
	return cmd
}

func newCasesGetCmd() *cobra.Command {
	var flags backendFlags
	cmd := &cobra.Command{
		Use:   "get <registro_ppu>",
		Short: "Show one case record with its urgency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := flags.service(cmd)
			if err != nil {
				return err
			}
			view, err := service.Get(cmd.Context(), args[0], "")
			if errors.Is(err, cases.ErrCaseNotFound) {
				return fmt.Errorf("case %s not found", args[0])
			}
			if err != nil {
				return err
			}
			if flags.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return writeCaseTable(cmd.OutOrStdout(), []models.CaseView{*view})
		},
	}
	flags.register(cmd)
	return cmd
}

func isClass(c urgency.Class) bool {
	for _, known := range urgency.Classes {
		if c == known {
			return true
		}
	}
	return false
}
