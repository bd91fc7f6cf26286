package telemetry

import "errors"

// ErrMeterNil is returned when a nil meter is passed to a metrics constructor
var ErrMeterNil = errors.New("telemetry: meter is nil")
