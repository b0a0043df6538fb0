package notify

import "errors"

// Domain-specific errors for status publishing.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDisabled is returned when MQTT publishing is disabled in config.
	ErrDisabled = errors.New("notify: disabled in configuration")

	// ErrNotConnected is returned when attempting operations on a disconnected publisher.
	ErrNotConnected = errors.New("notify: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("notify: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("notify: publish failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("notify: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("notify: topic cannot be empty")
)
