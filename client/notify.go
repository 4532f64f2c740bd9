package client

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// NotificationSink shows a blocking message to the user.
type NotificationSink interface {
	Notify(message string)
}

// NotifyFunc adapts a plain function to NotificationSink.
type NotifyFunc func(message string)

func (fn NotifyFunc) Notify(message string) { fn(message) }

// ConsoleNotifier prints an alert box to Out. With In set it blocks until
// the user presses Enter, like a modal alert.
type ConsoleNotifier struct {
	Out io.Writer
	In  io.Reader

	mu sync.Mutex
	in *bufio.Reader
}

func NewConsoleNotifier(out io.Writer, in io.Reader) *ConsoleNotifier {
	return &ConsoleNotifier{Out: out, In: in}
}

func (n *ConsoleNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	alert := color.New(color.FgHiRed, color.Bold).SprintFunc()
	fmt.Fprintf(n.Out, "\n%s %s\n", alert("[ALERT]"), message)

	if n.In == nil {
		return
	}
	if n.in == nil {
		n.in = bufio.NewReader(n.In)
	}
	fmt.Fprint(n.Out, color.New(color.Faint).Sprint("Press Enter to continue..."))
	_, _ = n.in.ReadString('\n')
}

// Recorder keeps every message it is given.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
