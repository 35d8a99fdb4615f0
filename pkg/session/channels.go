package session

import "strings"

// ParseChannelList splits a comma-separated channel list, trimming
// whitespace and dropping empty items.
func ParseChannelList(s string) []string {
	parts := strings.Split(s, ",")
	channels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			channels = append(channels, p)
		}
	}
	return channels
}
