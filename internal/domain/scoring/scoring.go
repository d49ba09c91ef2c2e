// Package scoring compares a user's recent game scores against the previous
// window to quantify a performance regression.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Default scoring configuration constants.
const (
	defaultMinSamples = 3
	percentScale      = 100
)

// Sentinel errors returned by Score.
var (
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrNonPositiveBaseline = errors.New("previous average is not positive")
)

// Option applies a configuration option to the WindowScorer.
type Option func(*WindowScorer)

// WithMinSamples sets the number of samples each bucket needs before a drop
// is computed.
func WithMinSamples(n int) Option {
	return func(s *WindowScorer) {
		if n > 0 {
			s.minSamples = n
		}
	}
}

// Input holds one user's scores split at the window boundary.
type Input struct {
	UserID   string
	Recent   []float64
	Previous []float64
}

// Add places a score in the recent bucket when at is not before boundary,
// otherwise in the previous bucket.
func (in *Input) Add(at, boundary time.Time, score float64) {
	if at.Before(boundary) {
		in.Previous = append(in.Previous, score)
		return
	}
	in.Recent = append(in.Recent, score)
}

// Result carries the averages and the relative drop. DropPercent is negative
// when performance improved.
type Result struct {
	UserID          string
	RecentAvg       float64
	PreviousAvg     float64
	DropPercent     float64
	RecentSamples   int
	PreviousSamples int
}

// Scorer computes a drop result from bucketed scores.
type Scorer interface {
	// Score honors ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// WindowScorer implements Scorer with plain arithmetic means.
type WindowScorer struct {
	minSamples int
}

// NewWindowScorer creates a scorer with configuration options.
func NewWindowScorer(opts ...Option) *WindowScorer {
	s := &WindowScorer{minSamples: defaultMinSamples}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes (previousAvg - recentAvg) / previousAvg * 100.
func (s *WindowScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	if len(in.Recent) < s.minSamples || len(in.Previous) < s.minSamples {
		return Result{}, fmt.Errorf("user %s: %w (recent=%d previous=%d need=%d)",
			in.UserID, ErrInsufficientSamples, len(in.Recent), len(in.Previous), s.minSamples)
	}

	res := Result{
		UserID:          in.UserID,
		RecentAvg:       Mean(in.Recent),
		PreviousAvg:     Mean(in.Previous),
		RecentSamples:   len(in.Recent),
		PreviousSamples: len(in.Previous),
	}
	if res.PreviousAvg <= 0 {
		return Result{}, fmt.Errorf("user %s: %w", in.UserID, ErrNonPositiveBaseline)
	}
	res.DropPercent = (res.PreviousAvg - res.RecentAvg) / res.PreviousAvg * percentScale
	return res, nil
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Round rounds to the nearest whole number, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v)
}
