package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderSimple(t *testing.T) {
	src := "1 true +"
	d := Diagnostic{Kind: Type, Message: "type mismatch: expected Int got Bool", Span: Span{Offset: 2, Length: 4}}
	got := d.Render("prog.do", src)
	want := "error: type mismatch: expected Int got Bool prog.do:1:3\n" +
		"1 true +\n" +
		"  ^^^^"
	require.Equal(t, want, got)
}

func TestRenderMinimumCaretWidth(t *testing.T) {
	d := Diagnostic{Kind: Lex, Message: "unknown character", Span: Span{Offset: 0, Length: 0}}
	got := d.Render("f.do", "@")
	require.Contains(t, got, "^")
	require.NotContains(t, got, "^^")
}

func TestRenderHint(t *testing.T) {
	d := Diagnostic{Kind: Type, Message: "unused value", Span: Span{Offset: 0, Length: 1}, Hint: "add print or pop"}
	got := d.Render("f.do", "3")
	require.Contains(t, got, "hint: add print or pop f.do:1:1")
}

func TestSortByOffset(t *testing.T) {
	l := &List{File: "f.do", Src: "a b c"}
	l.Add(Type, "second", Span{Offset: 4, Length: 1})
	l.Add(Type, "first", Span{Offset: 0, Length: 1})
	l.Sort()
	require.Equal(t, "first", l.Items[0].Message)
	require.Equal(t, "second", l.Items[1].Message)
}
