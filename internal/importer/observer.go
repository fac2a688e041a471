package importer

import (
	"sync"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

// EventKind identifies an import progress event.
type EventKind string

const (
	EventTeam     EventKind = "team"
	EventResult   EventKind = "result"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is one step of an import as seen by progress observers.
type Event struct {
	Kind    EventKind
	Index   int                  // EventResult: position of the draft in the snapshot
	Team    *types.RemoteTeam    // EventTeam
	Result  *types.ImportResult  // EventResult
	Summary *types.ImportSummary // EventComplete
	Err     error                // EventError
}

// Observer receives import events. Observers run on a separate goroutine and
// never hold up issue creation; they see events in the order they happened.
type Observer func(Event)

// dispatcher fans events out to observers from a single goroutine. The queue
// is unbounded so publish never blocks the creation loop.
type dispatcher struct {
	observers []Observer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	done   chan struct{}
}

func newDispatcher(observers []Observer) *dispatcher {
	d := &dispatcher{observers: observers, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	if len(observers) == 0 {
		close(d.done)
		return d
	}
	go d.run()
	return d
}

func (d *dispatcher) publish(ev Event) {
	if len(d.observers) == 0 {
		return
	}
	// Observers may retain the event; hand them their own copies.
	if ev.Result != nil {
		r := *ev.Result
		ev.Result = &r
	}
	if ev.Summary != nil {
		s := *ev.Summary
		s.Results = append([]types.ImportResult(nil), ev.Summary.Results...)
		ev.Summary = &s
	}
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		for _, obs := range d.observers {
			deliver(obs, ev)
		}
	}
}

// deliver isolates the import from a misbehaving observer.
func deliver(obs Observer, ev Event) {
	defer func() { _ = recover() }()
	obs(ev)
}

// close waits until every published event has been delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
	<-d.done
}
