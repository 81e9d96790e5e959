package urgency

import (
	"fmt"
	"strings"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Evaluator computes urgency results. It holds no mutable state and is safe
// for concurrent use.
type Evaluator struct {
	clock    Clock
	loc      *time.Location
	strategy SortStrategy
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock sets the clock used by Evaluate.
func WithClock(c Clock) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLocation sets the location wall-clock deadlines and calendar dates are read in.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithStrategy sets how countdown sort keys are derived.
func WithStrategy(s SortStrategy) Option {
	return func(e *Evaluator) {
		e.strategy = s
	}
}

// New creates an Evaluator using the system clock, the local time zone and SortByDiff.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		clock:    SystemClock,
		loc:      time.Local,
		strategy: SortByDiff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the evaluator's time zone.
func (e *Evaluator) Location() *time.Location { return e.loc }

// Strategy returns the evaluator's sort strategy.
func (e *Evaluator) Strategy() SortStrategy { return e.strategy }

// Now returns the evaluator clock's current instant.
func (e *Evaluator) Now() time.Time { return e.clock.Now() }

// WithStrategy returns a copy of e that derives sort keys with s.
func (e *Evaluator) WithStrategy(s SortStrategy) *Evaluator {
	c := *e
	c.strategy = s
	return &c
}

// Evaluate classifies a record against the evaluator clock's current instant.
func (e *Evaluator) Evaluate(reference, deadline string) Result {
	return e.EvaluateAt(e.clock.Now(), reference, deadline)
}

// EvaluateAt classifies a record against now. Failures are reported through
// the label and never returned.
func (e *Evaluator) EvaluateAt(now time.Time, reference, deadline string) Result {
	res, _ := e.Explain(now, reference, deadline)
	return res
}

// Explain is EvaluateAt that also returns the failure behind an error label.
func (e *Evaluator) Explain(now time.Time, reference, deadline string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrComputation, r)
			res = failed(err)
		}
	}()

	res, err = e.explain(now, reference, deadline)
	if err != nil {
		return failed(err), err
	}
	if e.strategy == SortByLabel {
		res.SortKey = Reparse(res.Label).SortKey
	}
	return res, nil
}

func (e *Evaluator) explain(now time.Time, reference, deadline string) (Result, error) {
	if isBlank(reference) || isBlank(deadline) {
		return notApplicable(), ErrMissingInput
	}

	d, err := ParseDeadline(deadline, e.loc)
	if err != nil {
		return Result{}, err
	}

	switch d := d.(type) {
	case Absolute:
		return e.absolute(now, d), nil
	case BusinessDays:
		ref, err := ParseReference(reference, e.loc)
		if err != nil {
			return Result{}, err
		}
		return e.businessDays(now, ref, d), nil
	default:
		return Result{}, fmt.Errorf("%w: unknown deadline %T", ErrComputation, d)
	}
}

func (e *Evaluator) businessDays(now, reference time.Time, d BusinessDays) Result {
	due := AddBusinessDays(reference.In(e.loc), d.N)
	remaining := BusinessDaysBetween(now.In(e.loc), due)
	if remaining < 0 {
		return overdue()
	}
	return daysRemaining(remaining)
}

func (e *Evaluator) absolute(now time.Time, d Absolute) Result {
	diff := d.At.Sub(now)
	if diff < 0 {
		return overdue()
	}

	secs := int64(diff / time.Second)
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	return countdown(days, hours, minutes)
}

func failed(err error) Result {
	label, class := labelForError(err)
	return Result{Label: label, SortKey: NoUrgency, Class: class}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
