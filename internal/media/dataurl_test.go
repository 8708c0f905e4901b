package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURL_RoundTrip(t *testing.T) {
	url := EncodeDataURL("image/png", []byte("hello"))
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", url)

	mimeType, data, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte("hello"), data)
}

func TestDecodeDataURL_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no prefix", "aGVsbG8="},
		{"no separator", "data:image/png;base64"},
		{"not base64 encoded", "data:text/plain,hello"},
		{"bad payload", "data:image/png;base64,!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDataURL(tt.input)
			assert.ErrorIs(t, err, ErrInvalidDataURL)
		})
	}
}

func TestDecodeInput(t *testing.T) {
	data, err := DecodeInput("data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = DecodeInput("  aGVsbG8=\n")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = DecodeInput("not base64 at all")
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}
