package sniffer

import (
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHead(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want MediaType
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, TypeJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}, TypePNG},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), TypeWEBP},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := DetectHead(tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Type)
		})
	}
}

func TestDetectHeadRejectsUnknown(t *testing.T) {
	_, err := DetectHead([]byte("GIF89a"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = DetectHead(nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDeclaredMimeType(t *testing.T) {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "Image/JPEG; charset=binary")
	assert.Equal(t, "image/jpeg", DeclaredMimeType(header))

	assert.Equal(t, "", DeclaredMimeType(textproto.MIMEHeader{}))
}
