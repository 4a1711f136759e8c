package analytics

import (
	"regexp"
	"strings"
)

var trailingOctet = regexp.MustCompile(`\.\d+$`)

// MaskIP truncates a client address before storage. IPv6 keeps the /64 prefix,
// IPv4 loses its last octet. Unrecognized input is returned unchanged.
func MaskIP(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, ":") {
		groups := strings.Split(raw, ":")
		if len(groups) > 4 {
			groups = groups[:4]
		}
		return strings.Join(groups, ":") + "::/64"
	}
	return trailingOctet.ReplaceAllString(raw, ".***")
}

// TruncateUserAgent caps ua at MaxUserAgentLen characters.
func TruncateUserAgent(ua string) string {
	runes := []rune(ua)
	if len(runes) <= MaxUserAgentLen {
		return ua
	}
	return string(runes[:MaxUserAgentLen])
}
