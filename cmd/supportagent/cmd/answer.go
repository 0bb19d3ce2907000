package cmd

import (
	"strings"

	"github.com/habiliai/supportagent/parser"
)

// answerFilter holds streamed model text back until the final answer marker
// has been seen, then passes the rest through to emit. Reasoning before the
// marker never reaches the client.
type answerFilter struct {
	emit func(text string) error
	buf  strings.Builder
	live bool
}

func (f *answerFilter) write(chunk string) error {
	if f.live {
		return f.send(chunk)
	}

	f.buf.WriteString(chunk)
	_, after, found := strings.Cut(f.buf.String(), parser.FinalAnswerMarker)
	if !found {
		return nil
	}
	f.live = true
	return f.send(strings.TrimLeft(after, " "))
}

func (f *answerFilter) send(text string) error {
	if text == "" {
		return nil
	}
	return f.emit(text)
}
