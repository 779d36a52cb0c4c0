package observability

import (
	"regexp"
	"strings"
)

// emailPattern matches addresses embedded in free text, such as provider
// error details ("x@y.com is already a list member").
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

// MaskEmail keeps the first local character and the domain: "jane@x.com"
// becomes "j***@x.com". Values without an @ are fully masked.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// RedactEmails masks every address found in s
func RedactEmails(s string) string {
	return emailPattern.ReplaceAllStringFunc(s, MaskEmail)
}
