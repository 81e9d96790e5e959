package urgency

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when the reference instant or the deadline value is absent.
	ErrMissingInput = errors.New("missing reference instant or deadline value")
	// ErrUnparseableReference is returned when the reference instant is not a valid date.
	ErrUnparseableReference = errors.New("unparseable reference instant")
	// ErrUnparseableDeadline is returned when the deadline value is neither a
	// business-day count nor an absolute timestamp.
	ErrUnparseableDeadline = errors.New("unparseable deadline value")
	// ErrComputation covers unexpected arithmetic failures.
	ErrComputation = errors.New("deadline computation failed")
)

var (
	// ErrInvalidTerm is a business-day count that cannot be read as an integer.
	ErrInvalidTerm = fmt.Errorf("%w: invalid business-day term", ErrUnparseableDeadline)
	// ErrInvalidDeadlineDate is an absolute deadline whose calendar components do not exist.
	ErrInvalidDeadlineDate = fmt.Errorf("%w: invalid calendar date", ErrUnparseableDeadline)
)

// labelForError maps an evaluation failure onto the label shown in place of a value.
func labelForError(err error) (string, Class) {
	switch {
	case errors.Is(err, ErrMissingInput):
		return LabelNotApplicable, ClassNotApplicable
	case errors.Is(err, ErrInvalidTerm):
		return LabelInvalidTerm, ClassInvalid
	case errors.Is(err, ErrInvalidDeadlineDate), errors.Is(err, ErrUnparseableReference):
		return LabelInvalidDate, ClassInvalid
	case errors.Is(err, ErrUnparseableDeadline):
		return LabelInvalidFormat, ClassInvalid
	default:
		return LabelComputationError, ClassInvalid
	}
}
