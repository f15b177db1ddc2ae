// Package answer composes user-facing answers from retrieved context. There
// is no generation step: a grounded answer is the text of the best matching
// chunk, verbatim. When nothing relevant was retrieved, or the knowledge base
// was unreachable, the composer returns a fixed message instead.
package answer

import (
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
)

// NoInfoMessage is returned when no relevant context exists for a question.
const NoInfoMessage = "I don't have information about this topic in my knowledge base. Please ask me about subjects covered in the indexed documents."

// backendErrorPreamble prefixes the detail of a knowledge-base failure.
const backendErrorPreamble = "I'm sorry, I'm currently unable to access my knowledge base. The server returned the following error: "

// minAnswerLength is the shortest chunk text accepted as a grounded answer.
const minAnswerLength = 20

// deflectionPhrases mark candidate text that itself admits ignorance; such a
// chunk must not be presented as a grounded answer.
var deflectionPhrases = []string{
	"I don't have",
	"I don't know",
}

// Compose builds the answer for a question from retrieval matches.
//
// Rules, in order: a backend-error sentinel anywhere in matches wins and
// yields a backend-error answer; empty matches yield the fixed no-context
// message; otherwise the top match's text is the answer, unless it fails
// validation (too short, or a deflection phrase), in which case the result
// degrades to no-context.
func Compose(question string, matches []models.RetrievalMatch) *models.AnswerResult {
	for _, m := range matches {
		if m.IsBackendError() {
			return &models.AnswerResult{
				Answer: backendErrorPreamble + m.BackendErrorDetail(),
				State:  models.AnswerBackendError,
			}
		}
	}

	if len(matches) == 0 {
		return &models.AnswerResult{Answer: NoInfoMessage, State: models.AnswerNoContext}
	}

	candidate := strings.TrimSpace(matches[0].Text)
	if !valid(candidate) {
		return &models.AnswerResult{Answer: NoInfoMessage, State: models.AnswerNoContext}
	}
	return &models.AnswerResult{Answer: candidate, State: models.AnswerGrounded}
}

func valid(text string) bool {
	if len(text) < minAnswerLength {
		return false
	}
	for _, phrase := range deflectionPhrases {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}
