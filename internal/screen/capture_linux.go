//go:build linux

package screen

import (
	"errors"
	"os/exec"
)

// NewPlatformGrabber prefers gnome-screenshot and falls back to scrot.
func NewPlatformGrabber() (Grabber, error) {
	if _, err := exec.LookPath("gnome-screenshot"); err == nil {
		return newCommandGrabber("gnome-screenshot", func(path string) []string {
			return []string{"-f", path}
		})
	}
	if _, err := exec.LookPath("scrot"); err == nil {
		return newCommandGrabber("scrot", func(path string) []string {
			return []string{"-o", path}
		})
	}
	return nil, errors.New("no screenshot tool found (install gnome-screenshot or scrot)")
}
