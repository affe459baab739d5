//go:build darwin

package screen

// NewPlatformGrabber uses screencapture: -x silences the shutter, -m limits
// the shot to the main display.
func NewPlatformGrabber() (Grabber, error) {
	return newCommandGrabber("screencapture", func(path string) []string {
		return []string{"-x", "-t", "jpg", "-m", path}
	})
}
