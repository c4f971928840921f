package errors

import (
	"bufio"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryRegistry Category = "registry"
	CategoryStartup  Category = "startup"
	CategoryTerrain  Category = "terrain"
	CategoryCLI      Category = "cli"
)

// Location represents a position in a file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// SimwireError is a structured error with an optional file location and hint.
type SimwireError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, registry, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the file position where the error occurred.
	Location *Location

	// Context contains surrounding file lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *SimwireError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *SimwireError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file location to the error and loads the lines around it.
func (e *SimwireError) WithLocation(file string, line, column int) *SimwireError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *SimwireError) WithSuggestion(s string) *SimwireError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *SimwireError) WithDetail(d string) *SimwireError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *SimwireError) Wrap(err error) *SimwireError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a SimwireError from a registered error code.
func New(code string) *SimwireError {
	template, ok := registry[code]
	if !ok {
		return &SimwireError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &SimwireError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new SimwireError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *SimwireError {
	return &SimwireError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a SimwireError.
func FromError(err error, code string) *SimwireError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SimwireError); ok {
		return se
	}
	return New(code).Wrap(err)
}
