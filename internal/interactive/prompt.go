// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// maxAttempts is how many invalid answers a confirm tolerates before declining.
const maxAttempts = 3

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	noticeStyle = lipgloss.NewStyle().Faint(true)
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes     Response = iota // Proceed
	ResponseNo                      // Decline
	ResponseInvalid                 // Unrecognised input, ask again
)

// Prompter asks yes/no questions on a terminal. Input is read on a
// background goroutine so a cancelled context unblocks a pending prompt.
type Prompter struct {
	in             io.Reader
	out            io.Writer
	assumeYes      bool
	nonInteractive bool

	once  sync.Once
	lines chan string
}

// NewPrompter creates a prompter reading stdin and writing to stderr, so
// stdout stays clean for command output. When stdin is not a terminal every
// confirm is declined unless AssumeYes is set.
func NewPrompter() *Prompter {
	p := NewPrompterWithIO(os.Stdin, os.Stderr)
	p.nonInteractive = !IsTerminal()
	return p
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  in,
		out: out,
	}
}

// AssumeYes makes every confirm answer yes without reading input.
func (p *Prompter) AssumeYes(yes bool) *Prompter {
	p.assumeYes = yes
	return p
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// parseResponse maps an input line to a response.
func parseResponse(input string) Response {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	default:
		return ResponseInvalid
	}
}

func (p *Prompter) startReader() {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- scanner.Text()
			}
		}()
	})
}

// readLine waits for the next input line. It returns io.EOF when input ends.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	p.startReader()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (p *Prompter) header(title, message string) {
	_, _ = fmt.Fprintf(p.out, "\n%s\n%s", titleStyle.Render(title), message)
}

// Confirm asks a yes/no question. End of input and cancellation decline with
// an error; invalid answers are asked again up to maxAttempts times.
func (p *Prompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	p.header(title, message)

	if p.assumeYes {
		_, _ = fmt.Fprintln(p.out, " [y/n] y")
		return true, nil
	}
	if p.nonInteractive {
		_, _ = fmt.Fprintln(p.out, " [y/n] n (no terminal)")
		return false, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, _ = fmt.Fprint(p.out, " [y/n] ")

		line, err := p.readLine(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(p.out)
			return false, err
		}

		switch parseResponse(line) {
		case ResponseYes:
			return true, nil
		case ResponseNo:
			return false, nil
		}
		_, _ = fmt.Fprint(p.out, "Please answer y or n.")
	}

	_, _ = fmt.Fprintln(p.out, "\nNo valid answer, declining.")
	return false, nil
}

// Acknowledge shows a notice and waits for Enter. End of input counts as
// acknowledged; without a terminal the notice is only printed.
func (p *Prompter) Acknowledge(ctx context.Context, title, message string) error {
	p.header(title, noticeStyle.Render(message))
	_, _ = fmt.Fprintln(p.out)

	if p.assumeYes || p.nonInteractive {
		return nil
	}

	_, _ = fmt.Fprint(p.out, "Press Enter to continue...")
	_, err := p.readLine(ctx)
	if err == io.EOF {
		_, _ = fmt.Fprintln(p.out)
		return nil
	}
	return err
}
