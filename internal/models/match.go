package models

import "strings"

// BackendErrorPrefix marks a sentinel match produced when the embedding or
// vector-store backend fails. Callers branch on it instead of on errors, so
// "no relevant content" (empty slice) stays distinct from "backend down".
const BackendErrorPrefix = "API_ERROR: "

// RetrievalMatch is a single retrieved chunk with its similarity score.
// Ephemeral: produced per query, never persisted.
type RetrievalMatch struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// BackendErrorMatch builds the sentinel match carrying a backend failure detail.
func BackendErrorMatch(detail string) RetrievalMatch {
	return RetrievalMatch{Text: BackendErrorPrefix + detail}
}

// IsBackendError reports whether m is the backend-failure sentinel.
func (m RetrievalMatch) IsBackendError() bool {
	return strings.HasPrefix(m.Text, BackendErrorPrefix)
}

// BackendErrorDetail returns the failure detail of a sentinel match,
// or "" if m is not a sentinel.
func (m RetrievalMatch) BackendErrorDetail() string {
	if !m.IsBackendError() {
		return ""
	}
	return strings.TrimPrefix(m.Text, BackendErrorPrefix)
}
