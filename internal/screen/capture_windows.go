//go:build windows

package screen

import "errors"

// NewPlatformGrabber is not implemented on Windows yet.
// TODO: grab frames through DXGI desktop duplication.
func NewPlatformGrabber() (Grabber, error) {
	return nil, errors.New("screen capture is not supported on windows")
}
