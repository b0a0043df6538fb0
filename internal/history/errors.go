package history

import "errors"

// Sentinel errors for the occupancy history recorder.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, history.ErrDisabled) {
//	    // Run without history recording
//	}
var (
	// ErrDisabled indicates history recording is disabled in config.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("history: connection failed")

	// ErrNotConnected indicates the recorder is not connected to InfluxDB.
	ErrNotConnected = errors.New("history: not connected")
)
