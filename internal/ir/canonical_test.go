package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool", IRBool(true), "true"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"nested", IRObject{"z": IRArray{IRInt(1)}, "a": IRObject{"b": IRBool(false)}}, `{"a":{"b":false},"z":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"quote and backslash", `a"b\c`, `"a\"b\\c"`},
		{"short escapes", "\b\f\n\r\t", `"\b\f\n\r\t"`},
		{"other control", "\x01", `"\u0001"`},
		{"line separator literal", "\u2028", "\"\u2028\""},
		{"nfc", "e\u0301", "\"\u00e9\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(IRArray{nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null is forbidden")
}

func TestUnitFingerprintStable(t *testing.T) {
	u := sampleUnit()

	first, err := UnitFingerprint(u)
	require.NoError(t, err)
	second, err := UnitFingerprint(sampleUnit())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	u.Width = 32
	changed, err := UnitFingerprint(u)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestFingerprintDomainSeparation(t *testing.T) {
	v := IRObject{"a": IRInt(1)}
	a, err := Fingerprint(DomainInput, v)
	require.NoError(t, err)
	b, err := Fingerprint(DomainConfig, v)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOperandString(t *testing.T) {
	assert.Equal(t, "x", Var("x").String())
	assert.Equal(t, "-3", Int(-3).String())
	assert.Equal(t, "True", Bool(true).String())
	assert.Equal(t, "None", None().String())
	assert.Equal(t, `"hi"`, Str("hi").String())
	assert.True(t, Var("%3").IsTemp())
	assert.False(t, Var("x").IsTemp())

	n, ok := Int(12).BigValue()
	require.True(t, ok)
	assert.Equal(t, int64(12), n.Int64())
	_, ok = Var("x").BigValue()
	assert.False(t, ok)
}

// sampleUnit is a guarded counted loop over range(n).
func sampleUnit() *Unit {
	return &Unit{
		Module:    "sample",
		IRVersion: IRVersion,
		Width:     64,
		Functions: []Function{{
			Name:   "f",
			Params: []string{"n"},
			Body: []Instr{{
				Op: OpRegion,
				Region: &LoweringResult{
					Label:   "r0",
					Pattern: "counted_for",
					Tier:    TierGuarded,
					Pos:     "m.py:2:5",
					Guards: []Guard{
						{Kind: GuardIsInt, Args: []Operand{Var("n")}, Target: "r0.deopt", Reason: ReasonTypeMismatch, Site: "m.py:2:20"},
						{Kind: GuardLenFits, Args: []Operand{Int(0), Var("n"), Int(1)}, Target: "r0.deopt", Reason: ReasonLenOverflow},
					},
					Body: []Instr{
						{Op: OpRangeTriplet, Dst: "%0", Args: []Operand{Int(0), Var("n"), Int(1)}},
						{Op: OpRangeLen, Dst: "%1", Args: []Operand{Var("%0")}},
						{Op: OpLoop, Dst: "%2", Args: []Operand{Var("%1")}, Body: []Instr{
							{Op: OpRangeAt, Dst: "i", Args: []Operand{Var("%0"), Var("%2")}},
						}},
					},
					Deopt: &DeoptBlock{
						Label: "r0.deopt",
						Live:  []string{"n"},
						Body: []Instr{
							{Op: OpCallDyn, Dst: "%3", Target: "builtin", Args: []Operand{Str("range")}},
							{Op: OpCallDyn, Dst: "%4", Target: "call", Args: []Operand{Var("%3"), Var("n")}},
							{Op: OpCallDyn, Dst: "%5", Target: "iter", Args: []Operand{Var("%4")}},
							{Op: OpLoop, Body: []Instr{
								{Op: OpCallDyn, Dst: "%6", Target: "next", Args: []Operand{Var("%5")}},
								{Op: OpCallDyn, Dst: "%7", Target: "is_stop", Args: []Operand{Var("%6")}},
								{Op: OpIf, Args: []Operand{Var("%7")}, Body: []Instr{{Op: OpBreak}}},
								{Op: OpCopy, Dst: "i", Args: []Operand{Var("%6")}},
							}},
						},
					},
				},
			}},
		}},
	}
}
