package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalOps is the part of golang.org/x/term the prompter relies on.
type terminalOps struct {
	isTerminal   func(fd int) bool
	getState     func(fd int) (*term.State, error)
	restore      func(fd int, state *term.State) error
	readPassword func(fd int) ([]byte, error)
}

var systemTerminal = terminalOps{
	isTerminal:   term.IsTerminal,
	getState:     term.GetState,
	restore:      term.Restore,
	readPassword: term.ReadPassword,
}

// hiddenPrompter reads a secret from the terminal without echoing it.
type hiddenPrompter struct {
	in   *os.File
	out  io.Writer
	term *terminalOps
}

func (p hiddenPrompter) ops() terminalOps {
	if p.term != nil {
		return *p.term
	}
	return systemTerminal
}

func (p hiddenPrompter) PromptToken(ctx context.Context, label string) (string, bool, error) {
	ops := p.ops()
	fd := int(p.in.Fd())
	if !ops.isTerminal(fd) {
		return "", false, fmt.Errorf("no token given and stdin is not a terminal, use --token or $SECBOARD_GITHUB_TOKEN")
	}

	// ReadPassword cannot be interrupted, so echo is restored here on cancel.
	state, err := ops.getState(fd)
	if err != nil {
		return "", false, fmt.Errorf("failed to read terminal state: %w", err)
	}

	fmt.Fprint(p.out, label+" ")
	type result struct {
		token []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := ops.readPassword(fd)
		done <- result{token, err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		if err := ops.restore(fd, state); err != nil {
			return "", false, fmt.Errorf("failed to restore terminal: %w", err)
		}
		return "", false, ctx.Err()
	case r := <-done:
		fmt.Fprintln(p.out)
		if r.err != nil {
			return "", false, r.err
		}
		token := strings.TrimSpace(string(r.token))
		return token, token != "", nil
	}
}
