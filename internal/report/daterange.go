// AngelaMos | 2026
// daterange.go

package report

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/carterperez-dev/leadboard/internal/core"
)

const (
	RangeToday     = "today"
	RangeThisWeek  = "thisWeek"
	RangeThisMonth = "thisMonth"
	RangeCustom    = "custom"

	dateLayout = "2006-01-02"
)

var ErrInvalidRange = fmt.Errorf("invalid date range: %w", core.ErrInvalidInput)

// DateRange is an inclusive interval on a record's createdAt.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ResolveRange turns a named range into absolute bounds in loc. Weeks start
// on Monday and End is the last nanosecond of the final day. An empty kind
// means no range.
func ResolveRange(
	kind, customStart, customEnd string,
	now time.Time,
	loc *time.Location,
) (*DateRange, error) {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch kind {
	case "":
		return nil, nil
	case RangeToday:
		return daysFrom(today, 1), nil
	case RangeThisWeek:
		sinceMonday := (int(local.Weekday()) + 6) % 7
		return daysFrom(today.AddDate(0, 0, -sinceMonday), 7), nil
	case RangeThisMonth:
		first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return &DateRange{
			Start: first,
			End:   first.AddDate(0, 1, 0).Add(-time.Nanosecond),
		}, nil
	case RangeCustom:
		return customRange(customStart, customEnd, loc)
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrInvalidRange)
	}
}

func customRange(start, end string, loc *time.Location) (*DateRange, error) {
	if start == "" || end == "" {
		return nil, fmt.Errorf("custom range needs customStartDate and customEndDate: %w", ErrInvalidRange)
	}

	from, err := time.ParseInLocation(dateLayout, start, loc)
	if err != nil {
		return nil, fmt.Errorf("customStartDate %q: %w", start, ErrInvalidRange)
	}

	to, err := time.ParseInLocation(dateLayout, end, loc)
	if err != nil {
		return nil, fmt.Errorf("customEndDate %q: %w", end, ErrInvalidRange)
	}

	if to.Before(from) {
		return nil, fmt.Errorf("customEndDate before customStartDate: %w", ErrInvalidRange)
	}

	return &DateRange{
		Start: from,
		End:   to.AddDate(0, 0, 1).Add(-time.Nanosecond),
	}, nil
}

func daysFrom(start time.Time, days int) *DateRange {
	return &DateRange{
		Start: start,
		End:   start.AddDate(0, 0, days).Add(-time.Nanosecond),
	}
}

func (r *DateRange) match(field string) bson.E {
	return bson.E{Key: field, Value: bson.D{
		{Key: "$gte", Value: r.Start},
		{Key: "$lte", Value: r.End},
	}}
}
