package services

import "strings"

// DiagnosticSuffix is appended to queries that carry none of the
// diagnosticKeywords.
const DiagnosticSuffix = " AND differential diagnosis"

var diagnosticKeywords = []string{
	"differential diagnosis",
	"case report",
	"clinical features",
}

// Normalize turns a raw user query into the esearch term: commas become
// " AND ", the result is trimmed, and DiagnosticSuffix is appended unless
// a diagnostic keyword is already present (case-insensitive). Call it
// once per request, on the raw query only.
func Normalize(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	query := strings.TrimSpace(strings.ReplaceAll(rawQuery, ",", " AND "))

	lowered := strings.ToLower(query)
	for _, keyword := range diagnosticKeywords {
		if strings.Contains(lowered, keyword) {
			return query
		}
	}

	return query + DiagnosticSuffix
}
