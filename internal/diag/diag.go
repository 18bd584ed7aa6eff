// Package diag renders source diagnostics for the do toolchain: lex, parse
// and type errors, all sharing the same span-anchored, caret-underlined
// format regardless of which pipeline stage produced them.
package diag

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Span is a byte offset and length into a source buffer.
type Span struct {
	Offset int
	Length int
}

// Kind distinguishes the pipeline stage a Diagnostic came from. It has no
// bearing on rendering, only on callers that want to filter or count by
// stage.
type Kind string

const (
	Lex   Kind = "lex"
	Parse Kind = "parse"
	Type  Kind = "type"
)

// Diagnostic is one reported problem, anchored to a Span in some source file.
type Diagnostic struct {
	Kind    Kind
	Message string
	Span    Span
	Hint    string
}

// List is an append-only collection of diagnostics produced by a single
// pipeline stage. The zero value is ready to use.
type List struct {
	File  string
	Src   string
	Items []Diagnostic
}

// Add appends a diagnostic.
func (l *List) Add(kind Kind, msg string, span Span) {
	l.Items = append(l.Items, Diagnostic{Kind: kind, Message: msg, Span: span})
}

// AddHint appends a diagnostic carrying a hint line.
func (l *List) AddHint(kind Kind, msg string, span Span, hint string) {
	l.Items = append(l.Items, Diagnostic{Kind: kind, Message: msg, Span: span, Hint: hint})
}

// Len reports the number of collected diagnostics.
func (l *List) Len() int { return len(l.Items) }

// Sort orders diagnostics by byte offset so rendering is deterministic
// regardless of the order in which a stage happened to discover them.
func (l *List) Sort() {
	slices.SortStableFunc(l.Items, func(a, b Diagnostic) int {
		return a.Span.Offset - b.Span.Offset
	})
}

// lineCol converts a byte offset in src to a 1-based (line, column) pair and
// returns the full text of that line.
func lineCol(src string, offset int) (line, col int, lineText string) {
	line = 1
	lineStart := 0
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := len(src)
	if idx := strings.IndexByte(src[lineStart:], '\n'); idx >= 0 {
		lineEnd = lineStart + idx
	}
	col = offset - lineStart + 1
	return line, col, src[lineStart:lineEnd]
}

// Render writes the diagnostic in the canonical format:
//
//	error: <message> <file>:<line>:<column>
//	<source line>
//	<caret underline>
//
// followed by an optional "hint: ..." line in the same shape.
func (d Diagnostic) Render(file, src string) string {
	line, col, lineText := lineCol(src, d.Span.Offset)

	var b strings.Builder
	fmt.Fprintf(&b, "error: %s %s:%d:%d\n", d.Message, file, line, col)
	b.WriteString(lineText)
	b.WriteByte('\n')

	width := d.Span.Length
	if width < 1 {
		width = 1
	}
	b.WriteString(strings.Repeat(" ", col-1))
	b.WriteString(strings.Repeat("^", width))

	if d.Hint != "" {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "hint: %s %s:%d:%d\n", d.Hint, file, line, col)
		b.WriteString(lineText)
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(" ", col-1))
		b.WriteString(strings.Repeat("^", width))
	}
	return b.String()
}

// Render renders every diagnostic in the list, in byte-offset order,
// separated by blank lines.
func (l *List) Render() string {
	l.Sort()
	parts := make([]string, 0, len(l.Items))
	for _, d := range l.Items {
		parts = append(parts, d.Render(l.File, l.Src))
	}
	return strings.Join(parts, "\n\n")
}
