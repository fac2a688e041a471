package flow

import (
	"context"

	"github.com/ticketdrop/ticketdrop/internal/log"
)

// Notifier surfaces user-facing messages. Implementations must not block for
// long; the controller calls them inline.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Ctx context.Context
}

func (n LogNotifier) ctx() context.Context {
	if n.Ctx == nil {
		return context.Background()
	}
	return n.Ctx
}

func (n LogNotifier) Info(msg string) {
	log.Info(n.ctx(), map[string]interface{}{"kind": "info"}, "%s", msg)
}

func (n LogNotifier) Success(msg string) {
	log.Info(n.ctx(), map[string]interface{}{"kind": "success"}, "%s", msg)
}

func (n LogNotifier) Warn(msg string) {
	log.Warn(n.ctx(), nil, "%s", msg)
}

func (n LogNotifier) Error(msg string) {
	log.Error(n.ctx(), nil, "%s", msg)
}

type nopNotifier struct{}

func (nopNotifier) Info(string)    {}
func (nopNotifier) Success(string) {}
func (nopNotifier) Warn(string)    {}
func (nopNotifier) Error(string)   {}
