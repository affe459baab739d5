package encoder

import (
	"fmt"
	"mime"
	"strings"
)

// target is a parsed recording format: the ffmpeg muxer plus the ordered
// list of ffmpeg encoders able to produce the requested video codec.
type target struct {
	muxer    string
	encoders []string
}

var containerMuxers = map[string]string{
	"video/webm": "webm",
}

var videoCodecs = map[string][]string{
	"vp9": {"libvpx-vp9"},
	"vp8": {"libvpx"},
	"av1": {"libsvtav1", "libaom-av1"},
}

// Audio codecs are accepted in a candidate and ignored; capture is video only.
var audioCodecs = map[string]bool{"opus": true, "vorbis": true}

// defaultVideo is tried in order when a candidate names no codec.
var defaultVideo = []string{"vp9", "vp8"}

// parseFormat maps a MIME candidate such as `video/webm; codecs="vp8,opus"`
// to an ffmpeg target.
func parseFormat(format string) (target, error) {
	mediaType, params, err := mime.ParseMediaType(format)
	if err != nil {
		return target{}, fmt.Errorf("parse format %q: %w", format, err)
	}
	muxer, ok := containerMuxers[mediaType]
	if !ok {
		return target{}, fmt.Errorf("container %q is not supported", mediaType)
	}

	t := target{muxer: muxer}
	var video []string
	for _, c := range strings.Split(params["codecs"], ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		switch {
		case c == "":
		case audioCodecs[c]:
		case strings.HasPrefix(c, "vp09"):
			video = append(video, "vp9")
		case strings.HasPrefix(c, "av01"):
			video = append(video, "av1")
		default:
			if _, ok := videoCodecs[c]; !ok {
				return target{}, fmt.Errorf("codec %q is not supported", c)
			}
			video = append(video, c)
		}
	}
	if len(video) > 1 {
		return target{}, fmt.Errorf("format %q names more than one video codec", format)
	}
	if len(video) == 0 {
		video = defaultVideo
	}
	for _, v := range video {
		t.encoders = append(t.encoders, videoCodecs[v]...)
	}
	return t, nil
}
