package detector

import "errors"

var (
	// ErrRecordSkipped marks a per-record failure inside a pass. The other
	// proposals of that pass are still used.
	ErrRecordSkipped = errors.New("record skipped")

	// ErrPassPanicked is returned for a pass that panicked.
	ErrPassPanicked = errors.New("pass panicked")

	// ErrRunPanicked is returned when the run itself panicked.
	ErrRunPanicked = errors.New("detection panicked")

	// ErrNilStore is returned by Run when the detector has no store.
	ErrNilStore = errors.New("nil store")
)
