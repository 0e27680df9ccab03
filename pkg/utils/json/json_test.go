package json

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func TestArabicPassesThrough(t *testing.T) {
	in := answer{Text: "مرحبًا", Language: "Arabic"}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "مرحبًا")

	var out answer
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(answer{Text: "hi", Language: "English"}))

	var out answer
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, "hi", out.Text)
}

func TestIsUsingSonic(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}
