package notify

import "fmt"

// defaultTopicPrefix is used when no prefix is configured.
const defaultTopicPrefix = "campusd"

// Topics builds the topic names the publisher writes to.
//
// All topics live under a configurable prefix so several daemons can
// share one broker:
//
//	{prefix}/system/status        daemon online/offline state (retained)
//	{prefix}/sites/{slug}/status  per-site live status (retained)
type Topics struct {
	Prefix string
}

// prefix returns the configured prefix, or the default when unset.
func (t Topics) prefix() string {
	if t.Prefix == "" {
		return defaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus returns the daemon status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// SiteStatus returns the live-status topic for a site slug.
func (t Topics) SiteStatus(slug string) string {
	return fmt.Sprintf("%s/sites/%s/status", t.prefix(), slug)
}
