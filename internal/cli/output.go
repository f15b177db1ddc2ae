// Package cli provides output formatting for the command line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes an answer and its supporting context to w.
func WriteAnswer(w io.Writer, result *models.AnswerResult, context []models.RetrievalMatch, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models.AskResponse{
			Answer:  result.Answer,
			State:   result.State,
			Context: context,
		})
	default:
		writeAnswerText(w, result, context)
		return nil
	}
}

func writeAnswerText(w io.Writer, result *models.AnswerResult, context []models.RetrievalMatch) {
	fmt.Fprintf(w, "\n%s\n", result.Answer)
	if result.State != models.AnswerGrounded || len(context) == 0 {
		return
	}
	fmt.Fprintf(w, "\n--- Context (%d chunks) ---\n", len(context))
	for i, m := range context {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] Score: %.4f | Source: %s\n", i+1, m.Score, m.Source)
		fmt.Fprintf(w, "%s\n", utils.Truncate(m.Text, 200))
	}
}

// WriteContext writes retrieved context chunks to w without an answer.
func WriteContext(w io.Writer, matches []models.RetrievalMatch, format OutputFormat) error {
	switch format {
	case OutputJSON:
		texts := make([]string, len(matches))
		for i, m := range matches {
			texts[i] = m.Text
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models.ContextResponse{Context: texts})
	default:
		if len(matches) == 0 {
			fmt.Fprintln(w, "No relevant context found.")
			return nil
		}
		fmt.Fprintf(w, "\nFound %d relevant chunks\n", len(matches))
		for i, m := range matches {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "[%d] Score: %.4f | Source: %s\n", i+1, m.Score, m.Source)
			fmt.Fprintf(w, "%s\n", m.Text)
		}
		return nil
	}
}
