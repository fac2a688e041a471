package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ticketdrop/ticketdrop/internal/ui"
)

// terminalNotifier prints flow notifications as styled one-liners. Info and
// success lines are dropped in quiet mode; warnings and errors never are.
type terminalNotifier struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

func (n *terminalNotifier) print(icon, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s %s\n", icon, msg)
}

func (n *terminalNotifier) Info(msg string) {
	if !n.quiet {
		n.print(ui.RenderAccent(ui.IconInfo), msg)
	}
}

func (n *terminalNotifier) Success(msg string) {
	if !n.quiet {
		n.print(ui.RenderPass(ui.IconPass), msg)
	}
}

func (n *terminalNotifier) Warn(msg string) {
	n.print(ui.RenderWarn(ui.IconWarn), msg)
}

func (n *terminalNotifier) Error(msg string) {
	n.print(ui.RenderFail(ui.IconFail), msg)
}
