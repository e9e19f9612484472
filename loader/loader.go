// Package loader implements the pluggable template-source capability:
// has_template/load/has_template_changed plus change notifications,
// and the file, in-memory and git-backed realizations of it.
package loader

import (
	"time"
)

// EventKind tags a change notification.
type EventKind int

const (
	// TemplateChanged names the one template that changed.
	TemplateChanged EventKind = iota
	// AllTemplatesChanged means every cached Program should be treated
	// as stale, regardless of name.
	AllTemplatesChanged
)

// Event is what a Loader emits via Subscribe when its backing store
// changes: a single templateChanged/allTemplatesChanged signal
// collapsed into one Go callback registration since this module carries
// no GUI/Qt-style signal bus.
type Event struct {
	Kind EventKind
	Name string // set only when Kind == TemplateChanged
}

// Loader is the capability contract package engine and package compiler
// (via an injected LoadAndParseFunc) depend on to resolve a template
// name to bytes.
type Loader interface {
	// HasTemplate reports whether name currently resolves.
	HasTemplate(name string) bool
	// Load returns name's current bytes, or ok=false on failure.
	Load(name string) (data []byte, ok bool)
	// HasTemplateChanged reports whether name's content has changed
	// since the given time (used by the engine to decide whether a
	// cached Program's dependency set is stale).
	HasTemplateChanged(name string, since time.Time) bool
	// Subscribe registers fn to receive every future Event. Returns an
	// unsubscribe function.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// broadcaster is the shared Subscribe/emit plumbing every Loader
// implementation embeds: a small composable helper type instead of a
// hand-rolled observer list per implementation.
type broadcaster struct {
	subs map[int]func(Event)
	next int
}

func newBroadcaster() broadcaster {
	return broadcaster{subs: map[int]func(Event){}}
}

func (b *broadcaster) Subscribe(fn func(Event)) func() {
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() { delete(b.subs, id) }
}

func (b *broadcaster) emit(ev Event) {
	for _, fn := range b.subs {
		fn(ev)
	}
}
