package helpers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/doeshing/dexplorer/internal/ports"
)

// Prompter implements ConfirmationPrompter over a reader and writer.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter constructs a prompter. A non-interactive prompter answers every
// question with no.
func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// Enabled reports whether questions can be asked.
func (p *Prompter) Enabled() bool {
	return p.interactive
}

// Confirm asks a yes/no question defaulting to no.
func (p *Prompter) Confirm(question string) (bool, error) {
	if !p.interactive {
		return false, nil
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return isAffirmativeResponse(strings.ToLower(strings.TrimSpace(line))), nil
}

func isAffirmativeResponse(response string) bool {
	return response == "y" || response == "yes"
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
