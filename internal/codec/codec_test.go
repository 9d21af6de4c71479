package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "ascii", text: "node_modules/\n*.log\n"},
		{name: "reserved characters", text: "a+b/c=d==\n+/="},
		{name: "utf8", text: "résumé ✓ 日本語\n"},
		{name: "hcl", text: "resource \"github_repository_collaborator\" \"octocat\" {\n  permission = \"admin\"\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeString(EncodeString(tt.text))
			require.NoError(t, err)
			assert.Equal(t, tt.text, got)
		})
	}
}

func TestDecodeIgnoresLineWrapping(t *testing.T) {
	// "hello world, this is wrapped" split the way GitHub returns it.
	wrapped := "aGVsbG8gd29ybGQs\nIHRoaXMgaXMgd3Jh\r\ncHBlZA==\n"

	got, err := DecodeString(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "hello world, this is wrapped", got)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode("not*base64!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}
