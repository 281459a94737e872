package ai

import (
	"strings"

	"github.com/tinote/tinote/internal/model"
)

// DefaultTitle is used when a reply yields no usable title.
const DefaultTitle = "AI Study Note"

// Summary is a parsed summarization reply.
type Summary struct {
	Title string
	Body  string
}

// ParseSummary splits a reply into title and body. The first line starting
// with '#' is the title and everything after it is the body; without such a
// line the first line is the title. An empty title becomes DefaultTitle, an
// empty body becomes the whole reply, and the title is cut to
// model.MaxTitleLength runes.
func ParseSummary(raw string) Summary {
	title, body := splitReply(raw)
	if title == "" {
		title = DefaultTitle
	}
	if body == "" {
		body = strings.TrimSpace(raw)
	}
	return Summary{
		Title: truncateRunes(title, model.MaxTitleLength),
		Body:  body,
	}
}

func splitReply(raw string) (title, body string) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		title = strings.TrimSpace(strings.ReplaceAll(line, "#", ""))
		if title != "" {
			return title, strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
		break
	}

	title = strings.TrimSpace(strings.ReplaceAll(lines[0], "#", ""))
	if len(lines) > 1 {
		body = strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	return title, body
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
