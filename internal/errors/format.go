package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// Style selects how Write renders an error.
type Style int

const (
	// StyleTerminal is the multi-line colored report with file context.
	StyleTerminal Style = iota
	// StyleLine is a single uncolored line, for pipes and --quiet.
	StyleLine
	// StyleJSON is one JSON object per error, matching log.format: json.
	StyleJSON
)

// String returns the style name.
func (s Style) String() string {
	switch s {
	case StyleTerminal:
		return "terminal"
	case StyleLine:
		return "line"
	case StyleJSON:
		return "json"
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiBlue  = "\033[34m"
	ansiCyan  = "\033[36m"
	ansiGray  = "\033[90m"
	ansiBold  = "\033[1m"
)

// palette paints text, or leaves it alone when color is off.
type palette bool

func (p palette) paint(code, text string) string {
	if !p {
		return text
	}
	return code + text + ansiReset
}

// Write renders err to w in the given style. Errors that are not a
// SimwireError, and do not wrap one, are rendered from their message.
func Write(w io.Writer, err error, style Style) {
	var se *SimwireError
	if !stderrors.As(err, &se) {
		se = &SimwireError{Message: err.Error()}
	}
	switch style {
	case StyleJSON:
		data, jerr := json.Marshal(se)
		if jerr != nil {
			fmt.Fprintf(w, "{\"level\":\"ERROR\",\"msg\":%q}\n", err.Error())
			return
		}
		fmt.Fprintf(w, "%s\n", data)
	case StyleLine:
		fmt.Fprintln(w, se.Line())
	default:
		fmt.Fprint(w, se.Pretty(true))
	}
}

// Pretty renders the error as a multi-line report: a header, the offending
// file lines with a marker, the wrapped cause, the hint and the docs link.
func (e *SimwireError) Pretty(color bool) string {
	p := palette(color)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(p.paint(ansiRed+ansiBold, "ERROR"))
	if e.Code != "" {
		b.WriteString(" " + p.paint(ansiBold, e.Code))
	}
	fmt.Fprintf(&b, ": %s\n\n", e.Message)

	if e.Location != nil {
		fmt.Fprintf(&b, "  %s\n\n", p.paint(ansiCyan, e.Location.String()))
		if len(e.Context) > 0 {
			e.writeContext(&b, p)
			b.WriteString("\n")
		}
	}

	for _, line := range wrapText(e.Detail, 70) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if e.Detail != "" {
		b.WriteString("\n")
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s%s\n\n", p.paint(ansiGray, "Cause: "), e.Wrapped)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", p.paint(ansiCyan, "Hint: "), e.Suggestion)
	}
	if e.DocURL != "" {
		fmt.Fprintf(&b, "  %s%s\n", p.paint(ansiGray, "Learn more: "), p.paint(ansiBlue, e.DocURL))
	}
	return b.String()
}

// writeContext prints the lines around Location, marking the bad one and,
// when known, its column.
func (e *SimwireError) writeContext(b *strings.Builder, p palette) {
	first := e.Location.Line - len(e.Context)/2
	gutter := p.paint(ansiGray, " │ ")
	for i, text := range e.Context {
		n := first + i
		if n != e.Location.Line {
			fmt.Fprintf(b, "    %4d%s%s\n", n, gutter, text)
			continue
		}
		fmt.Fprintf(b, "  %s%4d%s%s\n", p.paint(ansiRed, "→ "), n, gutter, text)
		if col := e.Location.Column; col > 0 {
			fmt.Fprintf(b, "       %s%s%s\n", p.paint(ansiGray, "│ "), strings.Repeat(" ", col-1), p.paint(ansiRed, "^"))
		}
	}
}

// Line renders the error on one line: location, code, message and cause,
// each present only when set.
func (e *SimwireError) Line() string {
	parts := make([]string, 0, 4)
	if e.Location != nil {
		parts = append(parts, e.Location.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)
	if e.Wrapped != nil {
		parts = append(parts, e.Wrapped.Error())
	}
	return strings.Join(parts, ": ")
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

type jsonError struct {
	Level      string        `json:"level"`
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category,omitempty"`
	Message    string        `json:"msg"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Cause      string        `json:"cause,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	DocURL     string        `json:"doc_url,omitempty"`
}

// MarshalJSON encodes the error with the level and msg keys slog's JSON
// handler uses, so startup failures sit alongside the server's own logs.
func (e *SimwireError) MarshalJSON() ([]byte, error) {
	out := jsonError{
		Level:      "ERROR",
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
		DocURL:     e.DocURL,
	}
	if e.Location != nil {
		out.Location = &jsonLocation{File: e.Location.File, Line: e.Location.Line, Column: e.Location.Column}
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	return json.Marshal(out)
}

// wrapText breaks text into lines of at most width bytes, splitting only
// at spaces. A single word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(text) {
		if cur != "" && len(cur)+1+len(word) > width {
			lines = append(lines, cur)
			cur = ""
		}
		if cur != "" {
			cur += " "
		}
		cur += word
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
