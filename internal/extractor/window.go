package extractor

import (
	"fmt"

	"newsdigest/internal/model"
)

// Window selects which article the remote extractor is asked to describe.
type Window string

const (
	// WindowLatest always asks for the most recent article.
	WindowLatest Window = "latest"
	// WindowTodayFirst asks for today's article and falls back to a random
	// article from the last 30 days.
	WindowTodayFirst Window = "today_first"
)

// ParseWindow validates a window name; "" means WindowLatest.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case "", WindowLatest:
		return WindowLatest, nil
	case WindowTodayFirst:
		return WindowTodayFirst, nil
	}
	return "", fmt.Errorf("unknown fetch window %q (want %q or %q)", s, WindowLatest, WindowTodayFirst)
}

// Field is one requested extraction field and its natural-language
// instruction.
type Field struct {
	Name        string
	Instruction string
}

// Fields returns the ordered field instructions sent for w.
func (w Window) Fields() []Field {
	subject := "the most recent article"
	if w == WindowTodayFirst {
		subject = "the article published today, or if none was published today a random article from the last 30 days"
	}
	return []Field{
		{model.FieldTitle, "Get only the title of " + subject},
		{model.FieldLink, "URL of " + subject},
		{model.FieldDate, "Publication date of " + subject},
		{model.FieldAuthor, "Author name of " + subject},
		{model.FieldSummary, "Generate a detailed summary under 300 words of the main points of " + subject + " excluding author information"},
		{model.FieldDiscussionPoints, "Extract 5-8 key discussion points from " + subject},
	}
}
