package urgency

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SortStrategy selects how countdown sort keys are computed.
type SortStrategy string

const (
	// SortByDiff weights the remaining days, hours and minutes of the countdown itself.
	SortByDiff SortStrategy = "diff"
	// SortByLabel re-derives the key from the label text with Reparse.
	SortByLabel SortStrategy = "label"
)

// ParseSortStrategy validates a strategy name. The empty string selects SortByDiff.
func ParseSortStrategy(s string) (SortStrategy, error) {
	switch SortStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByDiff:
		return SortByDiff, nil
	case SortByLabel:
		return SortByLabel, nil
	default:
		return "", fmt.Errorf("unknown sort strategy %q", s)
	}
}

var (
	remainingPattern  = regexp.MustCompile(`^(-?\d+) dias restantes$`)
	daysClause        = regexp.MustCompile(`\b(\d+) dias\b`)
	hoursClause       = regexp.MustCompile(`\b(\d+) horas\b`)
	minutesClause     = regexp.MustCompile(`\b(\d+) minutos\b`)
	errorLabelsLower  = map[string]bool{}
	notApplicableText = strings.ToLower(LabelNotApplicable)
)

func init() {
	for _, l := range []string{LabelComputationError, LabelInvalidDate, LabelInvalidFormat, LabelInvalidTerm} {
		errorLabelsLower[strings.ToLower(l)] = true
	}
}

// Reparse re-derives the class and sort key of an already rendered label. It
// reads the lower-cased text only. A countdown label is keyed as
// days + hours/24 + minutes/1440, each read from its own clause wherever it
// appears, so "falta 5 horas" sorts before "falta 1 dias".
func Reparse(label string) Result {
	text := strings.ToLower(strings.TrimSpace(label))

	switch {
	case text == notApplicableText:
		return Result{Label: label, SortKey: NoUrgency, Class: ClassNotApplicable}
	case text == "vencido":
		return Result{Label: label, SortKey: SortKeyOverdue, Class: ClassOverdue}
	case strings.HasPrefix(text, "urgente"):
		return Result{Label: label, SortKey: SortKeyUrgent, Class: ClassUrgent}
	case text == strings.ToLower(LabelLessThanMinute):
		return Result{Label: label, SortKey: 0, Class: ClassCountdown}
	case errorLabelsLower[text]:
		return Result{Label: label, SortKey: NoUrgency, Class: ClassInvalid}
	}

	if m := remainingPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Result{Label: label, SortKey: NoUrgency, Class: ClassInvalid}
		}
		return Result{Label: label, SortKey: float64(n), Class: ClassPending}
	}

	if strings.HasPrefix(text, "falta ") {
		d := daysClause.FindStringSubmatch(text)
		h := hoursClause.FindStringSubmatch(text)
		mm := minutesClause.FindStringSubmatch(text)
		if d == nil && h == nil && mm == nil {
			return Result{Label: label, SortKey: NoUrgency, Class: ClassInvalid}
		}
		key := clauseValue(d) + clauseValue(h)/24 + clauseValue(mm)/1440
		return Result{Label: label, SortKey: key, Class: ClassCountdown}
	}

	return Result{Label: label, SortKey: NoUrgency, Class: ClassInvalid}
}

func clauseValue(m []string) float64 {
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
