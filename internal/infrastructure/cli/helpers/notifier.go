package helpers

import (
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/doeshing/dexplorer/internal/ports"
)

// Notifier prints success notices to the terminal. A repeat of the last
// message is dropped while the previous one is still within its duration.
type Notifier struct {
	out   io.Writer
	color *color.Color
	now   func() time.Time

	mu      sync.Mutex
	last    string
	visible time.Time
}

// NewNotifier builds a Notifier writing to out.
func NewNotifier(out io.Writer, useColor bool) *Notifier {
	c := color.New(color.FgGreen)
	if !useColor {
		c.DisableColor()
	}
	return &Notifier{out: out, color: c, now: time.Now}
}

// Success implements ports.Notifier.
func (n *Notifier) Success(message string, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if message == n.last && now.Before(n.visible) {
		return
	}
	n.last = message
	n.visible = now.Add(duration)
	_, _ = n.color.Fprintf(n.out, "✓ %s\n", message)
}

var _ ports.Notifier = (*Notifier)(nil)
