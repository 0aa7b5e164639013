package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

const disableTerminalCopyEnv = "REVIEWDECK_DISABLE_OSC52"

// copyBackend is one way of placing text on the user's clipboard.
type copyBackend struct {
	name  string
	write func(string) error
}

// copyBackends are tried in order until one accepts the text.
var copyBackends = []copyBackend{
	{name: "system", write: clipboard.WriteAll},
	{name: "osc52", write: copyViaTerminal},
}

// copyText returns the name of the backend that took the text.
func copyText(text string) (string, error) {
	failures := make([]string, 0, len(copyBackends))
	for _, backend := range copyBackends {
		err := backend.write(text)
		if err == nil {
			return backend.name, nil
		}
		failures = append(failures, backend.name+": "+explainCopyFailure(err))
	}
	if len(failures) == 0 {
		return "", errors.New("no clipboard backend configured")
	}
	return "", fmt.Errorf("no clipboard accepted the text (%s)", strings.Join(failures, "; "))
}

func copyViaTerminal(text string) error {
	if !terminalCopySupported() {
		return errors.New("terminal copy disabled")
	}
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer tty.Close()
	return emitTerminalCopy(tty, text)
}

// emitTerminalCopy writes the OSC52 sequence, wrapped for the multiplexer
// the session runs under.
func emitTerminalCopy(w io.Writer, text string) error {
	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		// set-clipboard decides which of the two forms tmux forwards.
		if _, err := seq.WriteTo(w); err != nil {
			return err
		}
		seq = seq.Tmux()
	} else if strings.HasPrefix(strings.ToLower(os.Getenv("TERM")), "screen") {
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(w)
	return err
}

func terminalCopySupported() bool {
	if off, _ := parseEnvBool(os.Getenv(disableTerminalCopyEnv)); off {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	return term != "" && term != "dumb"
}

func parseEnvBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// explainCopyFailure turns the bare exit status of a missing clipboard
// helper into something a user can act on.
func explainCopyFailure(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg != "exit status 1" {
		return msg
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return "no display for a GUI clipboard"
	}
	return "clipboard helper failed"
}
