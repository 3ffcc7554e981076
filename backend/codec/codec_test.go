package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_PartialWrites(t *testing.T) {
	d := NewDecoder(0)

	_, err := d.Write([]byte("jo"))
	require.NoError(t, err)
	_, ok := d.Decode()
	assert.False(t, ok, "no line before the marker arrives")
	assert.Equal(t, 2, d.Buffered())

	_, err = d.Write([]byte("in room al<N"))
	require.NoError(t, err)
	_, ok = d.Decode()
	assert.False(t, ok, "split marker must not be decoded")

	_, err = d.Write([]byte("L>"))
	require.NoError(t, err)
	line, ok := d.Decode()
	require.True(t, ok)
	assert.Equal(t, "join room al", line)

	_, ok = d.Decode()
	assert.False(t, ok)
	assert.Zero(t, d.Buffered())
}

func TestDecoder_Decode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLines []string
		wantRest  int
	}{
		{
			name:      "single line",
			input:     "hello<NL>",
			wantLines: []string{"hello"},
		},
		{
			name:      "surrounding whitespace trimmed",
			input:     "  join lobby bob \r\n<NL>",
			wantLines: []string{"join lobby bob"},
		},
		{
			name:      "several lines in one chunk",
			input:     "a<NL>b<NL>c<NL>",
			wantLines: []string{"a", "b", "c"},
		},
		{
			name:      "remainder kept",
			input:     "first<NL>seco",
			wantLines: []string{"first"},
			wantRest:  4,
		},
		{
			name:      "empty frame",
			input:     "<NL>",
			wantLines: []string{""},
		},
		{
			name:     "no marker",
			input:    "no marker here",
			wantRest: 14,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(0)
			_, err := d.Write([]byte(tt.input))
			require.NoError(t, err)

			var got []string
			for {
				line, ok := d.Decode()
				if !ok {
					break
				}
				got = append(got, line)
			}
			assert.Equal(t, tt.wantLines, got)
			assert.Equal(t, tt.wantRest, d.Buffered())
		})
	}
}

func TestDecoder_InvalidUTF8(t *testing.T) {
	d := NewDecoder(0)
	_, err := d.Write([]byte("a\xffb<NL>"))
	require.NoError(t, err)

	line, ok := d.Decode()
	require.True(t, ok)
	assert.Equal(t, "a�b", line)
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	d := NewDecoder(8)

	_, err := d.Write([]byte("12345678"))
	require.NoError(t, err)

	_, err = d.Write([]byte("9"))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecoder_LargeChunkWithMarker(t *testing.T) {
	d := NewDecoder(8)

	_, err := d.Write([]byte("0123456789<NL>"))
	require.NoError(t, err)

	line, ok := d.Decode()
	require.True(t, ok)
	assert.Equal(t, "0123456789", line)
}

func TestEncoder_PassThrough(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	require.NoError(t, e.Encode("alice has joined<NL>"))
	require.NoError(t, e.Encode(""))
	require.NoError(t, e.Encode("\n"))

	assert.Equal(t, "alice has joined<NL>\n", buf.String())
}
