package detector

import (
	"time"

	"github.com/okian/patternwatch/pkg/logger"
)

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithLogger sets a custom logger for the detector.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// WithPasses replaces the detection passes.
func WithPasses(passes ...Pass) Option {
	return func(d *Detector) {
		if len(passes) > 0 {
			d.passes = passes
		}
	}
}

// WithCooldown enables store-backed dedup for the alert types that do not
// dedup on their own. A non-positive window uses one week.
func WithCooldown(window time.Duration) Option {
	return func(d *Detector) {
		d.policy = d.policy.WithCooldown(window)
		d.cooldown = true
	}
}

// WithMaxManagersPerAlert caps the notifications created for one critical
// alert. Zero means unlimited.
func WithMaxManagersPerAlert(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.maxManagers = n
		}
	}
}

// WithParallelPasses runs the passes concurrently.
func WithParallelPasses(enabled bool) Option {
	return func(d *Detector) {
		d.parallel = enabled
	}
}

// WithClock sets the time source used by Run.
func WithClock(clock func() time.Time) Option {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithIDGenerator sets the function that assigns ids to inserted rows.
func WithIDGenerator(gen func() string) Option {
	return func(d *Detector) {
		if gen != nil {
			d.newID = gen
		}
	}
}
