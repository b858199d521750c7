package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidParams wraps parameter validation failures.
var ErrInvalidParams = errors.New("invalid parameters")

// ErrUnknownInterval is returned for a trend interval other than daily, weekly, or monthly.
var ErrUnknownInterval = errors.New("unknown interval")

// Interval is the bucket width of a price trend.
type Interval string

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

// ParseInterval accepts the interval names case-insensitively.
func ParseInterval(s string) (Interval, error) {
	switch iv := Interval(strings.ToLower(strings.TrimSpace(s))); iv {
	case Daily, Weekly, Monthly:
		return iv, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInterval, s)
	}
}

// truncate maps t to the start of its UTC bucket. Weeks start on Monday.
func (iv Interval) truncate(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch iv {
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

type LatestParams struct {
	Company string
	Limit   int `default:"5" validate:"gte=1,lte=100"`
}

type WindowParams struct {
	Company string
	Days    int `default:"30" validate:"gte=1,lte=3650"`
}

type TopCompaniesParams struct {
	Limit int       `default:"10" validate:"gte=1,lte=100"`
	From  time.Time // zero means unbounded
	To    time.Time
}

type AnomalyParams struct {
	Threshold float64 `default:"2" validate:"gt=0"`
}

type PredictionParams struct {
	Horizon int `default:"30" validate:"gte=1,lte=365"`
}

type CorrelationParams struct {
	Threshold float64 `default:"0.7" validate:"gte=0,lte=1"`
}

// Normalize fills zero fields from their default tags and validates the result.
func Normalize(p any) error {
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
