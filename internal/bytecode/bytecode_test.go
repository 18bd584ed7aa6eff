package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	insns := []Instruction{
		{Op: Push, Arg: 42},
		{Op: Dup},
		{Op: Add},
		{Op: Store, Arg: 3},
		{Op: Load, Arg: 3},
		{Op: Label, Arg: 7},
		{Op: JumpIfFalse, Arg: 7},
		{Op: Return},
	}
	for _, in := range insns {
		words := in.Encode()
		got, width, err := Decode(words, 0)
		require.NoError(t, err)
		require.Equal(t, in, got)
		require.Equal(t, len(words), width)
	}
}

func TestEncodeDecodeAllRoundTrip(t *testing.T) {
	insns := []Instruction{
		{Op: Push, Arg: 1},
		{Op: Push, Arg: 2},
		{Op: Add},
		{Op: Print},
		{Op: Return},
	}
	words := EncodeAll(insns)
	got, err := DecodeAll(words)
	require.NoError(t, err)
	require.Equal(t, insns, got)
}

func TestWidths(t *testing.T) {
	require.Equal(t, 2, Push.Width())
	require.Equal(t, 1, Dup.Width())
	require.Equal(t, 1, Add.Width())
	require.Equal(t, 2, CallStatic.Width())
	require.Equal(t, 1, CallDynamic.Width())
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := Decode([]Word{Word(Push)}, 0)
	require.Error(t, err)
}

func TestConstIndexDedupes(t *testing.T) {
	var p Program
	a := p.ConstIndex("foo")
	b := p.ConstIndex("bar")
	c := p.ConstIndex("foo")
	require.Equal(t, a, c)
	require.NotEqual(t, a, b)
}
