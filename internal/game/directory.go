package game

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Directory is the single well-known registry of sessions still accepting
// joins. It runs one loop goroutine; all access goes through the op channel,
// so the entry map and observer table need no locking.
type Directory struct {
	ops       chan func()
	entries   map[string]int
	observers *observers

	mu     sync.Mutex
	closed bool
}

func NewDirectory(leaseTTL time.Duration) *Directory {
	d := &Directory{
		ops:       make(chan func()),
		entries:   make(map[string]int),
		observers: newObservers(leaseTTL),
	}
	go d.loop()
	return d
}

func (d *Directory) loop() {
	for op := range d.ops {
		op()
	}
}

func (d *Directory) do(op func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	done := make(chan struct{})
	d.ops <- func() {
		op()
		close(done)
	}
	d.mu.Unlock()
	<-done
}

// Close stops the directory loop. Pending ops are drained first; operations
// arriving after Close are dropped, so session actors finishing work during
// shutdown cannot hit a closed channel. Safe to call more than once.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.ops)
}

// Upsert inserts or replaces the entry for sessionID and broadcasts the full
// list to subscribers.
func (d *Directory) Upsert(sessionID string, participants int) {
	d.do(func() {
		d.entries[sessionID] = participants
		log.Debug().Str("session", sessionID).Int("participants", participants).Msg("directory upsert")
		d.observers.notify(DirectoryEvent{Entries: d.list()})
	})
}

// Remove deletes the entry for sessionID, if present, and broadcasts.
func (d *Directory) Remove(sessionID string) {
	d.do(func() {
		if _, ok := d.entries[sessionID]; !ok {
			return
		}
		delete(d.entries, sessionID)
		log.Debug().Str("session", sessionID).Msg("directory remove")
		d.observers.notify(DirectoryEvent{Entries: d.list()})
	})
}

// List returns the current entries sorted by session id.
func (d *Directory) List() []DirectoryEntry {
	var out []DirectoryEntry
	d.do(func() {
		out = d.list()
	})
	return out
}

func (d *Directory) Subscribe(subscriberID string, sub Subscriber) {
	d.do(func() {
		d.observers.subscribe(subscriberID, sub)
	})
}

func (d *Directory) Unsubscribe(subscriberID string) {
	d.do(func() {
		d.observers.unsubscribe(subscriberID)
	})
}

func (d *Directory) list() []DirectoryEntry {
	out := make([]DirectoryEntry, 0, len(d.entries))
	for id, n := range d.entries {
		out = append(out, DirectoryEntry{SessionID: id, Participants: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
