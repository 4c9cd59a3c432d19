package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"signature", Signature("abc"), `"abc"`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"string array", []string{"b", "a"}, `["b","a"]`},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"a": []any{1, "x"}}, `{"a":[1,"x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes to surrogate 0xD83D, which sorts before 0xFFFD in
	// UTF-16 even though its UTF-8 form sorts after.
	result, err := MarshalCanonical(map[string]any{
		"\uFFFD":     1,
		"\U0001F600": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFFFD\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("x\u2028y\u2029z")
	require.NoError(t, err)
	assert.Equal(t, "\"x\u2028y\u2029z\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(`x\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"k": nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_RejectsInvalidUTF8(t *testing.T) {
	_, err := MarshalCanonical("src/a\xff.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")

	_, err = MarshalCanonical(map[string]any{"src/a\xff.txt": "h1"})
	require.Error(t, err)
}
