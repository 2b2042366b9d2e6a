// Package redact masks credentials before they reach log output.
package redact

func Token(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED_TOKEN]"
}

func Password() string { return "[REDACTED_PASSWORD]" }

// Username keeps the first two characters for correlation.
func Username(s string) string {
	if len(s) <= 2 {
		return "***"
	}
	return s[:2] + "***"
}
