package screen

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"time"

	"github.com/corona10/goimagehash"
)

// sceneDetector flags frames whose perceptual hash is further than
// threshold bits from the previous frame.
type sceneDetector struct {
	threshold int
	last      *goimagehash.ImageHash
	cuts      []time.Duration
}

func newSceneDetector(threshold int) *sceneDetector {
	return &sceneDetector{threshold: threshold}
}

// observe hashes frame and reports whether it starts a new scene. Frames that
// do not decode are ignored.
func (d *sceneDetector) observe(frame []byte, at time.Duration) bool {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}
	prev := d.last
	d.last = hash
	if prev == nil {
		return false
	}
	dist, err := prev.Distance(hash)
	if err != nil || dist <= d.threshold {
		return false
	}
	d.cuts = append(d.cuts, at)
	return true
}

func (d *sceneDetector) cutsCopy() []time.Duration {
	return append([]time.Duration(nil), d.cuts...)
}
