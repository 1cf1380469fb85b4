package host

import (
	"fmt"
	"os/exec"
	"runtime"
)

// BrowserOpener opens URLs in the system's default browser.
type BrowserOpener struct {
	goos  string
	start func(name string, args ...string) error
}

// NewBrowserOpener returns an opener for the current platform.
func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{
		goos: runtime.GOOS,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open launches the platform URL handler without waiting for it.
func (b *BrowserOpener) Open(url string) error {
	switch b.goos {
	case "darwin":
		return b.start("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		return b.start("xdg-open", url)
	case "windows":
		return b.start("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %q for opening browser", b.goos)
	}
}
