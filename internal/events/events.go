// Package events announces committed lifecycle transitions to other systems.
package events

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Transition is the payload published for every applied state change.
type Transition struct {
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entity_id"`
	TaskID     string    `json:"task_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Subject returns the routing subject under prefix, e.g. hustle.task.accepted.
func (t Transition) Subject(prefix string) string {
	return prefix + "." + t.Entity + "." + strings.ToLower(t.To)
}

type Publisher interface {
	Publish(ctx context.Context, t Transition) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Transition) error { return nil }
func (NopPublisher) Close() error                              { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Transition
	err    error
}

func (r *Recorder) Publish(_ context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, t)
	return nil
}

func (r *Recorder) Close() error { return nil }

// FailWith makes subsequent publishes return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.events))
	copy(out, r.events)
	return out
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
