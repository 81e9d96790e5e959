// Package urgency classifies how close a case record is to its attention
// deadline. The result is a display label plus a numeric key that orders
// records most urgent first.
package urgency

import (
	"fmt"
	"strings"
)

// NoUrgency is the sort key of records that cannot be evaluated. It is the
// largest integer a float64 represents exactly, so those rows sort last.
const NoUrgency float64 = 1<<53 - 1

const (
	// SortKeyOverdue orders overdue records first.
	SortKeyOverdue float64 = -3
	// SortKeyUrgent orders records that must be resolved today right after overdue ones.
	SortKeyUrgent float64 = -2
)

// Labels produced by the evaluator.
const (
	LabelNotApplicable    = "N/A"
	LabelOverdue          = "Vencido"
	LabelUrgent           = "URGENTE RESOLVER EN EL DIA"
	LabelLessThanMinute   = "FALTA MENOS DE UN MINUTO"
	LabelComputationError = "Error en cálculo"
	LabelInvalidDate      = "Fecha inválida"
	LabelInvalidFormat    = "Formato inválido"
	LabelInvalidTerm      = "Plazo inválido"
)

// Class is the urgency bucket a result falls into.
type Class string

const (
	ClassNotApplicable Class = "not_applicable"
	ClassInvalid       Class = "invalid"
	ClassOverdue       Class = "overdue"
	ClassUrgent        Class = "urgent"
	ClassPending       Class = "pending"
	ClassCountdown     Class = "countdown"
)

// Classes lists every class in urgency order.
var Classes = []Class{
	ClassOverdue,
	ClassUrgent,
	ClassPending,
	ClassCountdown,
	ClassInvalid,
	ClassNotApplicable,
}

// Actionable reports whether records of this class have a computable deadline.
func (c Class) Actionable() bool {
	switch c {
	case ClassOverdue, ClassUrgent, ClassPending, ClassCountdown:
		return true
	default:
		return false
	}
}

// Result is the derived urgency of one record. It is never persisted.
type Result struct {
	Label   string  `json:"label"`
	SortKey float64 `json:"sort_key"`
	Class   Class   `json:"class"`
}

func notApplicable() Result {
	return Result{Label: LabelNotApplicable, SortKey: NoUrgency, Class: ClassNotApplicable}
}

func overdue() Result {
	return Result{Label: LabelOverdue, SortKey: SortKeyOverdue, Class: ClassOverdue}
}

func daysRemaining(n int) Result {
	if n == 1 {
		return Result{Label: LabelUrgent, SortKey: SortKeyUrgent, Class: ClassUrgent}
	}
	return Result{Label: fmt.Sprintf("%d dias restantes", n), SortKey: float64(n), Class: ClassPending}
}

// countdown builds the absolute-mode label. Only non-zero components are shown.
func countdown(days, hours, minutes int64) Result {
	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d DIAS", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d HORAS", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d MINUTOS", minutes))
	}

	key := float64(days) + float64(hours)/24 + float64(minutes)/1440
	if len(parts) == 0 {
		return Result{Label: LabelLessThanMinute, SortKey: 0, Class: ClassCountdown}
	}
	return Result{Label: "FALTA " + strings.Join(parts, " Y "), SortKey: key, Class: ClassCountdown}
}
