package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCaseTable(out io.Writer, views []models.CaseView) error {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"PPU", "Atencion", "Plazo", "Dias Restantes", "Sort Key", "Class"})
	for _, v := range views {
		if err := table.Append([]string{
			orDash(v.RegistroPPU),
			orDash(v.FechaAtencion.String()),
			orDash(v.PlazoAtencion.String()),
			v.DiasRestantes,
			formatSortKey(v.UrgencySortKey),
			colorClass(v.UrgencyClass),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeSummaryTable(out io.Writer, summary *models.CaseSummary) error {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"Class", "Count"})
	for _, c := range urgency.Classes {
		if err := table.Append([]string{colorClass(c), strconv.Itoa(summary.Counts[c])}); err != nil {
			return err
		}
	}
	if err := table.Append([]string{"total", strconv.Itoa(summary.Total)}); err != nil {
		return err
	}
	return table.Render()
}

func writeSweepTable(out io.Writer, runs []*models.SweepRun) error {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"ID", "Status", "Started", "Total", "Overdue", "Urgent", "Invalid", "Error"})
	for _, r := range runs {
		status := string(r.Status)
		if r.Status == models.SweepStatusFailed {
			status = color.RedString(status)
		}
		if err := table.Append([]string{
			r.ID.String(),
			status,
			r.StartedAt.Format(time.RFC3339),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Overdue),
			strconv.Itoa(r.Urgent),
			strconv.Itoa(r.Invalid),
			orDash(r.Error),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func colorClass(c urgency.Class) string {
	switch c {
	case urgency.ClassOverdue:
		return color.RedString(string(c))
	case urgency.ClassUrgent:
		return color.YellowString(string(c))
	case urgency.ClassPending, urgency.ClassCountdown:
		return color.GreenString(string(c))
	default:
		return string(c)
	}
}

func formatSortKey(k float64) string {
	if k == urgency.NoUrgency {
		return "-"
	}
	return strconv.FormatFloat(k, 'f', 4, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printf(out io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(out, format, args...)
}
