package logger

import "strings"

// RedactEmail masks the local part of an address so log lines never carry a
// full customer email: "olga.olden@example.com" becomes "ol***@example.com".
// A local part of two characters or fewer is masked entirely, and anything
// that does not look like one-local-one-domain comes back fully masked.
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	local, domain := parts[0], parts[1]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
