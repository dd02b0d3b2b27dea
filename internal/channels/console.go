package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	consoleChannelName = "console"
	consoleSelfID      = "chatrelay"
)

// ConsoleOptions configures the console adapter.
type ConsoleOptions struct {
	In     io.Reader // defaults to os.Stdin
	Out    io.Writer // defaults to os.Stdout
	UserID string    // author ID for every line; defaults to "console"
	Prompt string    // shown before each line on a TTY
}

// Console reads one message per line and prints replies. Lines are handled
// one at a time, in order.
type Console struct {
	in     io.Reader
	userID string
	prompt string

	mu  sync.Mutex
	out io.Writer

	wg sync.WaitGroup
}

// NewConsole creates a console adapter.
func NewConsole(opts ConsoleOptions) *Console {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.UserID == "" {
		opts.UserID = "console"
	}
	if opts.Prompt == "" {
		opts.Prompt = "you> "
	}
	return &Console{in: opts.In, out: opts.Out, userID: opts.UserID, prompt: opts.Prompt}
}

// Name returns "console".
func (c *Console) Name() string { return consoleChannelName }

// Run reads lines until EOF or ctx is done.
func (c *Console) Run(ctx context.Context, h EventHandler) error {
	readLine, restore, err := c.lineReader()
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := readLine()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != io.EOF {
					return fmt.Errorf("console read: %w", err)
				}
				return nil
			}
			c.wg.Add(1)
			err := h.HandleEvent(ctx, Event{
				Channel:   consoleChannelName,
				ChannelID: consoleChannelName,
				AuthorID:  c.userID,
				SelfID:    consoleSelfID,
				Text:      line,
			}, c)
			c.wg.Done()
			if err != nil {
				return err
			}
		}
	}
}

// lineReader picks raw-mode line editing on a terminal and plain line
// scanning otherwise.
func (c *Console) lineReader() (func() (string, error), func(), error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return nil, nil, fmt.Errorf("console raw mode: %w", err)
		}
		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{f, c.out}, c.prompt)

		c.mu.Lock()
		c.out = t
		c.mu.Unlock()

		restore := func() { _ = term.Restore(int(f.Fd()), state) }
		return t.ReadLine, restore, nil
	}

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	read := func() (string, error) {
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return read, func() {}, nil
}

// Send prints text on its own line. channelID is ignored.
func (c *Console) Send(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(c.out, text)
	return err
}

// Wait blocks until the line being handled is done.
func (c *Console) Wait() {
	c.wg.Wait()
}

// Ensure Console implements Adapter
var _ Adapter = (*Console)(nil)
