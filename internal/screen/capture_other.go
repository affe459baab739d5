//go:build !darwin && !linux && !windows

package screen

import (
	"fmt"
	"runtime"
)

func NewPlatformGrabber() (Grabber, error) {
	return nil, fmt.Errorf("screen capture is not supported on %s", runtime.GOOS)
}
