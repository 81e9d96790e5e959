// Package commands implements the casectl command tree.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/config"
	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// NewRootCmd builds the casectl command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "casectl",
		Short:         "Command line tool for the case desk",
		Long:          "Evaluate deadline urgency offline, inspect case records and manage the runtime settings of the case desk API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(NewEvaluateCmd())
	root.AddCommand(NewCasesCmd())
	root.AddCommand(NewCorsCmd())
	root.AddCommand(NewRatelimitCmd())
	root.AddCommand(NewSweepCmd())
	root.AddCommand(NewListCmd())
	return root
}

// loadConfig reads the config file and environment without requiring the
// settings only the server and worker need.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func closeDatabase(cmd *cobra.Command, db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close database: %v\n", err)
	}
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	if !debug {
		return zap.NewNop()
	}
	log, err := logger.New("casectl", true, true)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputTable, outputJSON)
	}
}

// evaluatorFlags are shared by the commands that compute urgency
type evaluatorFlags struct {
	tz   string
	sort string
	now  string
}

func (f *evaluatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tz, "tz", "", "IANA time zone for dates without an offset (default from URGENCY_TIMEZONE)")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort key strategy: diff or label (default from URGENCY_SORT_STRATEGY)")
}

func (f *evaluatorFlags) registerNow(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.now, "now", "", "Evaluate as of this instant: RFC 3339, \"2006-01-02 15:04\" or \"2006-01-02\" (default the current time)")
}

// evaluator builds an evaluator from the flags, falling back to cfg
func (f *evaluatorFlags) evaluator(cfg *config.Config) (*urgency.Evaluator, error) {
	if f.tz != "" {
		cfg.UrgencyTimezone = f.tz
	}
	if f.sort != "" {
		cfg.UrgencySortStrategy = f.sort
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	strategy, err := cfg.SortStrategy()
	if err != nil {
		return nil, err
	}
	opts := []urgency.Option{urgency.WithLocation(loc), urgency.WithStrategy(strategy)}
	if f.now != "" {
		now, err := parseNow(f.now, loc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, urgency.WithClock(urgency.ClockFunc(func() time.Time { return now })))
	}
	return urgency.New(opts...), nil
}

var nowLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseNow(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range nowLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --now %q", value)
}

// readInput reads path, or the command's stdin when path is "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// withDatabase opens the database named by the configuration for the duration of fn
func withDatabase(cmd *cobra.Command, fn func(db *database.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(cmd, db)
	return fn(db)
}
