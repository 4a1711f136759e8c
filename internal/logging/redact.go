package logging

import "strings"

// RedactEmail keeps the first character of the local part and the domain,
// so "alice@example.com" logs as "a***@example.com".
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := []rune(email[:at])
	return string(local[0]) + "***" + email[at:]
}
