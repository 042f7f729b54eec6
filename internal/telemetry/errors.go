package telemetry

import "errors"

// Domain errors for the telemetry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, telemetry.ErrInvalidReport) {
//	    // reject the message, do not retry
//	}
var (
	// ErrInvalidReport is returned when a report fails validation.
	// The wrapped message names the offending field and value.
	ErrInvalidReport = errors.New("telemetry: invalid report")

	// ErrMalformedPayload is returned when a payload is not valid JSON.
	ErrMalformedPayload = errors.New("telemetry: malformed payload")

	// ErrNoData is returned when no telemetry exists for a device.
	ErrNoData = errors.New("telemetry: no data")

	// ErrHistoryWrite is returned when the append-only history insert fails.
	// This is fatal for the message: history is the source of truth.
	ErrHistoryWrite = errors.New("telemetry: history write failed")
)
