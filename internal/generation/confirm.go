package generation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Confirmer blocks until a person acknowledges msg.
type Confirmer interface {
	Confirm(ctx context.Context, msg string) error
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, msg string) error

func (f ConfirmFunc) Confirm(ctx context.Context, msg string) error {
	return f(ctx, msg)
}

// ConsoleConfirmer prints a message and waits for a line of input. One
// goroutine reads the input for the confirmer's lifetime, so lines that
// arrive early are kept for later confirmations.
type ConsoleConfirmer struct {
	in  *bufio.Reader
	out io.Writer

	once  sync.Once
	lines chan error
}

// NewConsoleConfirmer reads confirmations from in and writes prompts to out.
func NewConsoleConfirmer(in io.Reader, out io.Writer) *ConsoleConfirmer {
	return &ConsoleConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *ConsoleConfirmer) Confirm(ctx context.Context, msg string) error {
	c.once.Do(func() {
		c.lines = make(chan error)
		go c.read()
	})
	fmt.Fprintf(c.out, "%s\nPress Enter to continue...", msg)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-c.lines:
		if !ok {
			err = io.EOF
		}
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		return nil
	}
}

func (c *ConsoleConfirmer) read() {
	defer close(c.lines)
	for {
		_, err := c.in.ReadString('\n')
		c.lines <- err
		if err != nil {
			return
		}
	}
}
