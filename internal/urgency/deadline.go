package urgency

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxBusinessDays bounds business-day terms. Larger terms are treated as a computation error.
const MaxBusinessDays = 100000

// AbsoluteLayout is the textual form of an absolute deadline.
const AbsoluteLayout = "02-01-2006 03:04 PM"

var (
	absolutePattern = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4}) (\d{2}):(\d{2})(?:\s*([AaPp][Mm]))?$`)
	digitsPattern   = regexp.MustCompile(`^\d+$`)
)

// Deadline is either BusinessDays or Absolute.
type Deadline interface {
	fmt.Stringer
	isDeadline()
}

// BusinessDays is a term of N business days counted from the reference instant.
type BusinessDays struct {
	N int
}

func (BusinessDays) isDeadline() {}

func (d BusinessDays) String() string { return strconv.Itoa(d.N) }

// Absolute is a deadline given as a wall-clock timestamp.
type Absolute struct {
	At time.Time
}

func (Absolute) isDeadline() {}

func (d Absolute) String() string { return d.At.Format(AbsoluteLayout) }

// ParseDeadline reads a deadline value. Values shaped like DD-MM-YYYY HH:MM
// (optionally followed by AM or PM) are absolute deadlines built in loc;
// all-digit values are business-day terms.
func ParseDeadline(value string, loc *time.Location) (Deadline, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrMissingInput
	}
	if loc == nil {
		loc = time.Local
	}

	if m := absolutePattern.FindStringSubmatch(value); m != nil {
		at, err := absoluteTime(m, loc)
		if err != nil {
			return nil, err
		}
		return Absolute{At: at}, nil
	}

	if digitsPattern.MatchString(value) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTerm, value)
		}
		if n > MaxBusinessDays {
			return nil, fmt.Errorf("%w: term of %d business days exceeds %d", ErrComputation, n, MaxBusinessDays)
		}
		return BusinessDays{N: n}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnparseableDeadline, value)
}

func absoluteTime(m []string, loc *time.Location) (time.Time, error) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	switch strings.ToUpper(m[6]) {
	case "":
		if hour > 23 {
			return time.Time{}, fmt.Errorf("%w: hour %d", ErrInvalidDeadlineDate, hour)
		}
	case "AM":
		if hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: hour %d AM", ErrInvalidDeadlineDate, hour)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: hour %d PM", ErrInvalidDeadlineDate, hour)
		}
		if hour != 12 {
			hour += 12
		}
	}
	if minute > 59 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDeadlineDate, m[0])
	}

	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if at.Day() != day || int(at.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDeadlineDate, m[0])
	}
	return at, nil
}

var referenceLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"02-01-2006",
	"02/01/2006",
	"02-01-2006 15:04",
	"02/01/2006 15:04",
}

var zonedReferenceLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// ParseReference reads the attention start instant as wall-clock time in loc.
// A zone or offset in the value is dropped: the date and time are kept as
// written, so "Mon, 01 Jan 2024 00:00:00 GMT" is the first of January in any loc.
func ParseReference(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrMissingInput
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range referenceLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range zonedReferenceLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return wallClock(t, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableReference, value)
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
