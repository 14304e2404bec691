package timer

import "github.com/joescharf/focus/internal/models"

// CompletionMessage returns the title and body announced when a run completes.
func CompletionMessage(mode models.Mode) (title, body string) {
	if mode == models.ModeBreak {
		return "Break is over!", "Ready to get back to work?"
	}
	return "Work session complete!", "Great job! Time for a break."
}
