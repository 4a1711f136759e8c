package analytics

import "regexp"

var (
	eventTypePattern = regexp.MustCompile(`^[a-z0-9_]{3,48}$`)
	emailPattern     = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// IsValidEventType reports whether s is 3-48 lower-case letters, digits or underscores.
func IsValidEventType(s string) bool {
	return eventTypePattern.MatchString(s)
}

// IsValidEmail applies a loose local@domain.tld shape check.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// FirstNonEmpty returns the first non-empty value.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
