package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/louisbranch/didregistry/internal/services/registry/event"
)

var errJournalDown = errors.New("journal down")

// memJournal is an in-memory Journal for tests.
type memJournal struct {
	mu        sync.Mutex
	events    []event.Event
	appendErr error
	listErr   error
}

func (j *memJournal) AppendEvent(_ context.Context, evt event.Event, afterSeq uint64) (event.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.appendErr != nil {
		return event.Event{}, j.appendErr
	}
	if head := uint64(len(j.events)); head != afterSeq {
		return event.Event{}, fmt.Errorf("%w: head %d, expected %d", event.ErrChainBroken, head, afterSeq)
	}
	prevHash := ""
	if n := len(j.events); n > 0 {
		prevHash = j.events[n-1].Hash
	}
	stored, err := event.Seal(evt, uint64(len(j.events))+1, prevHash)
	if err != nil {
		return event.Event{}, err
	}
	j.events = append(j.events, stored)
	return stored, nil
}

func (j *memJournal) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.listErr != nil {
		return nil, j.listErr
	}
	var out []event.Event
	for _, evt := range j.events {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// appendNext appends evt at the current head, as another writer would.
func (j *memJournal) appendNext(evt event.Event) (event.Event, error) {
	j.mu.Lock()
	head := uint64(len(j.events))
	j.mu.Unlock()
	return j.AppendEvent(context.Background(), evt, head)
}

func (j *memJournal) snapshot() []event.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]event.Event(nil), j.events...)
}

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Publish(evt event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) kinds() []event.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Kind, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Kind)
	}
	return out
}
