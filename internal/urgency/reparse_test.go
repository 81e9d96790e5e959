package urgency

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReparse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label     string
		wantKey   float64
		wantClass Class
	}{
		{label: "N/A", wantKey: NoUrgency, wantClass: ClassNotApplicable},
		{label: "Vencido", wantKey: SortKeyOverdue, wantClass: ClassOverdue},
		{label: "URGENTE RESOLVER EN EL DIA", wantKey: SortKeyUrgent, wantClass: ClassUrgent},
		{label: "0 dias restantes", wantKey: 0, wantClass: ClassPending},
		{label: "12 dias restantes", wantKey: 12, wantClass: ClassPending},
		{label: "FALTA 2 DIAS Y 3 HORAS", wantKey: 2 + 3.0/24, wantClass: ClassCountdown},
		{label: "FALTA 2 DIAS Y 3 HORAS Y 30 MINUTOS", wantKey: 2 + 3.0/24 + 30.0/1440, wantClass: ClassCountdown},
		{label: "FALTA 1 HORAS Y 30 MINUTOS", wantKey: 1.0/24 + 30.0/1440, wantClass: ClassCountdown},
		{label: "FALTA 5 HORAS", wantKey: 5.0 / 24, wantClass: ClassCountdown},
		{label: "FALTA 45 MINUTOS", wantKey: 45.0 / 1440, wantClass: ClassCountdown},
		{label: "FALTA 3 DIAS Y 20 MINUTOS", wantKey: 3 + 20.0/1440, wantClass: ClassCountdown},
		{label: "FALTA POCO", wantKey: NoUrgency, wantClass: ClassInvalid},
		{label: "FALTA MENOS DE UN MINUTO", wantKey: 0, wantClass: ClassCountdown},
		{label: "Error en cálculo", wantKey: NoUrgency, wantClass: ClassInvalid},
		{label: "Fecha inválida", wantKey: NoUrgency, wantClass: ClassInvalid},
		{label: "Formato inválido", wantKey: NoUrgency, wantClass: ClassInvalid},
		{label: "Plazo inválido", wantKey: NoUrgency, wantClass: ClassInvalid},
		{label: "something else", wantKey: NoUrgency, wantClass: ClassInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			res := Reparse(tt.label)
			assert.Equal(t, tt.label, res.Label)
			assert.InDelta(t, tt.wantKey, res.SortKey, 1e-9)
			assert.Equal(t, tt.wantClass, res.Class)
		})
	}
}

// Every label the evaluator renders must reparse into the same class.
func TestReparseAgreesWithEvaluate(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 6, 9, 0, 0, 0, lima)
	deadlines := []string{"", "x", "-1", "1.5", "99999999999999999999", "200000", "31-04-2024 10:00 AM"}
	for n := 0; n <= 15; n++ {
		deadlines = append(deadlines, fmt.Sprint(n))
	}
	for minutes := -120; minutes <= 4*24*60; minutes += 37 {
		deadlines = append(deadlines, base.Add(time.Duration(minutes)*time.Minute).Format(AbsoluteLayout))
	}
	references := []string{"", "2024-05-01", "2024-05-04", "2024-04-20 08:00:00", "nope"}

	for day := 0; day < 10; day++ {
		now := base.AddDate(0, 0, day)
		e := newTestEvaluator(now)
		for _, ref := range references {
			for _, d := range deadlines {
				res := e.Evaluate(ref, d)
				again := Reparse(res.Label)
				require.Equal(t, res.Class, again.Class, "reference %q deadline %q label %q", ref, d, res.Label)
				require.InDelta(t, res.SortKey, again.SortKey, 1e-9, "reference %q deadline %q label %q", ref, d, res.Label)
			}
		}
	}
}

func TestParseSortStrategy(t *testing.T) {
	t.Parallel()

	s, err := ParseSortStrategy("")
	require.NoError(t, err)
	assert.Equal(t, SortByDiff, s)

	s, err = ParseSortStrategy(" LABEL ")
	require.NoError(t, err)
	assert.Equal(t, SortByLabel, s)

	_, err = ParseSortStrategy("random")
	assert.Error(t, err)
}
