package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		encoders []string
		wantErr  bool
	}{
		{"video/webm; codecs=vp9", []string{"libvpx-vp9"}, false},
		{"video/webm;codecs=VP8", []string{"libvpx"}, false},
		{`video/webm; codecs="vp09.00.10.08"`, []string{"libvpx-vp9"}, false},
		{`video/webm; codecs="vp8, opus"`, []string{"libvpx"}, false},
		{"video/webm; codecs=av1", []string{"libsvtav1", "libaom-av1"}, false},
		{"video/webm", []string{"libvpx-vp9", "libvpx"}, false},
		{"video/webm; codecs=opus", []string{"libvpx-vp9", "libvpx"}, false},
		{"video/webm; codecs=h264", nil, true},
		{`video/webm; codecs="vp8,vp9"`, nil, true},
		{"video/mp4; codecs=avc1", nil, true},
		{"", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "webm", got.muxer)
			assert.Equal(t, tt.encoders, got.encoders)
		})
	}
}

func TestParseListing(t *testing.T) {
	enc := parseListing([]byte(encodersListing))
	assert.True(t, enc["libvpx"])
	assert.True(t, enc["libvpx-vp9"])
	assert.False(t, enc["V....D"])
	assert.False(t, enc["Video"], "legend lines precede the table")

	mux := parseListing([]byte(muxersListing))
	assert.True(t, mux["webm"])
	assert.True(t, mux["matroska"])

	aliases := parseListing([]byte(" --\n  E matroska,webm   Matroska / WebM\n"))
	assert.True(t, aliases["webm"])
}

func TestResolve(t *testing.T) {
	caps := capabilities{
		encoders: map[string]bool{"libvpx": true},
		muxers:   map[string]bool{"webm": true},
	}
	got, ok := caps.resolve(target{muxer: "webm", encoders: []string{"libvpx-vp9", "libvpx"}})
	assert.True(t, ok)
	assert.Equal(t, "libvpx", got)

	_, ok = caps.resolve(target{muxer: "mp4", encoders: []string{"libvpx"}})
	assert.False(t, ok)
}
