package orchestrator

import "strings"

// CompletionPredicate decides whether a participant's text declares the task
// finished.
type CompletionPredicate func(text string) bool

// Completion keywords match case-insensitively anywhere in the reply text.
var completionKeywords = []string{
	"[task_complete]",
	"task complete",
	"[done]",
	"finished",
}

// KeywordCompletion is the default predicate. A reply containing any of the
// recognized completion markers ends the session organically.
func KeywordCompletion(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
