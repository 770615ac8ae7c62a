package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"SupplyGuard/internal/conversation"
)

// REPL renders a Widget on a terminal and feeds it lines from the user
type REPL struct {
	widget *Widget
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	seen    int
	firstID string
	typing  bool
	mu      sync.Mutex
}

// NewREPL creates a terminal front end for widget
func NewREPL(widget *Widget, in io.Reader, out io.Writer, logger *slog.Logger) *REPL {
	if logger == nil {
		logger = slog.Default()
	}
	return &REPL{widget: widget, in: in, out: out, logger: logger}
}

// Run prints the conversation so far and processes input until EOF, /quit or
// ctx is cancelled. No new request is started once ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	unsubscribe := r.widget.Subscribe(r.render)
	defer unsubscribe()

	fmt.Fprintln(r.out, "=== SupplyGuard AI ===")
	fmt.Fprintln(r.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(r.out)
	r.replay(r.widget.Messages())

	done := make(chan struct{})
	defer close(done)
	lines, scanErr := r.readLines(done)

loop:
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(r.out)
			break
		}
		fmt.Fprint(r.out, "You: ")

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			break loop
		case line, ok = <-lines:
		}
		if !ok {
			if err := <-scanErr; err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := r.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
				r.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		r.widget.Submit(ctx, input)
	}

	fmt.Fprintln(r.out, "Goodbye!")
	return nil
}

// readLines scans r.in on its own goroutine so that a blocked read does not
// keep Run from noticing cancellation. lines is closed at EOF, after the scan
// error has been sent.
func (r *REPL) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}

// handleCommand handles slash commands; the bool reports whether to quit
func (r *REPL) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/clear":
		r.widget.Clear()
		return false, nil

	case "/history":
		r.mu.Lock()
		r.replayLocked(r.widget.Messages())
		r.mu.Unlock()
		return false, nil

	case "/examples":
		fmt.Fprintln(r.out, "\nTry asking:")
		for i, q := range ExampleQueries {
			fmt.Fprintf(r.out, "%d. %s\n", i+1, q)
		}
		fmt.Fprintln(r.out, "Use /ask <n> to send one.")
		fmt.Fprintln(r.out)
		return false, nil

	case "/ask":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /ask <n> (1-%d)", len(ExampleQueries))
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > len(ExampleQueries) {
			return false, fmt.Errorf("no example query %q", parts[1])
		}
		query := ExampleQueries[n-1]
		fmt.Fprintf(r.out, "You: %s\n", query)
		r.widget.SendCanned(ctx, query)
		return false, nil

	case "/help":
		fmt.Fprintln(r.out, "Available commands:")
		fmt.Fprintln(r.out, "  /quit, /exit  - Exit")
		fmt.Fprintln(r.out, "  /clear        - Clear the conversation")
		fmt.Fprintln(r.out, "  /history      - Show the whole conversation")
		fmt.Fprintln(r.out, "  /examples     - List example questions")
		fmt.Fprintln(r.out, "  /ask <n>      - Send example question n")
		fmt.Fprintln(r.out, "  /help         - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// render is the widget subscriber: it prints bot messages it has not shown
// yet and the typing placeholder.
func (r *REPL) render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(v.Messages) < r.seen || (len(v.Messages) > 0 && v.Messages[0].ID != r.firstID) {
		fmt.Fprintln(r.out, "Conversation cleared.")
		r.replayLocked(v.Messages)
	} else {
		for _, msg := range v.Messages[r.seen:] {
			if !msg.IsUser {
				r.printMessage(msg)
			}
		}
		r.seen = len(v.Messages)
	}

	if v.Typing && !r.typing {
		fmt.Fprintln(r.out, "SupplyGuard AI is typing...")
	}
	r.typing = v.Typing
}

func (r *REPL) replay(messages []conversation.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replayLocked(messages)
}

func (r *REPL) replayLocked(messages []conversation.Message) {
	for _, msg := range messages {
		r.printMessage(msg)
	}
	r.seen = len(messages)
	r.firstID = ""
	if len(messages) > 0 {
		r.firstID = messages[0].ID
	}
}

func (r *REPL) printMessage(msg conversation.Message) {
	author := "SupplyGuard AI"
	if msg.IsUser {
		author = "You"
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n\n", msg.Timestamp.Local().Format("15:04"), author, msg.Text)
}
