package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// ErrNoBrowser is returned when no opener command exists on this system
var ErrNoBrowser = errors.New("no supported browser opener found")

// opener is one way of handing a URL to a browser
type opener struct {
	name    string
	command string
	args    []string
}

// Launcher opens the relay dashboard in the user's browser
type Launcher struct {
	openers  []opener
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// NewLauncher creates a launcher for the current platform
func NewLauncher() *Launcher {
	return &Launcher{
		openers:  platformOpeners(runtime.GOOS),
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// Open opens url with the first available opener
func (l *Launcher) Open(url string) error {
	o, err := l.selectOpener()
	if err != nil {
		return err
	}

	args := append(append([]string{}, o.args...), url)
	if err := l.start(o.command, args...); err != nil {
		return fmt.Errorf("launching %s: %w", o.name, err)
	}
	return nil
}

// Name reports which opener Open would use
func (l *Launcher) Name() (string, error) {
	o, err := l.selectOpener()
	if err != nil {
		return "", err
	}
	return o.name, nil
}

func (l *Launcher) selectOpener() (opener, error) {
	for _, o := range l.openers {
		if _, err := l.lookPath(o.command); err == nil {
			return o, nil
		}
	}
	return opener{}, ErrNoBrowser
}

// startDetached starts the command and reaps it in the background
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 - command comes from the fixed opener table
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// platformOpeners lists system default openers first, then common browsers
func platformOpeners(goos string) []opener {
	switch goos {
	case "darwin":
		return []opener{
			{name: "default", command: "open"},
		}
	case "linux", "freebsd", "openbsd":
		return []opener{
			{name: "xdg-open", command: "xdg-open"},
			{name: "chrome", command: "google-chrome"},
			{name: "chromium", command: "chromium"},
			{name: "firefox", command: "firefox"},
		}
	case "windows":
		return []opener{
			{name: "default", command: "rundll32", args: []string{"url.dll,FileProtocolHandler"}},
		}
	default:
		return nil
	}
}

// Ensure Launcher implements ports.BrowserLauncher
var _ ports.BrowserLauncher = (*Launcher)(nil)
