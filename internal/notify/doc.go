// Package notify publishes live-status updates to an MQTT broker.
//
// Every refresh cycle pushes one retained message per site under
// {prefix}/sites/{slug}/status, plus a retained daemon status under
// {prefix}/system/status with a Last Will for crash detection. The
// publisher is optional: when disabled in config, refresh cycles run
// without it.
package notify
