package loader

import "time"

// MemoryLoader is a name -> bytes map loader for tests and embedded
// templates: Add/Remove mutate the map and emit the matching change
// event.
type MemoryLoader struct {
	templates map[string][]byte
	updatedAt map[string]time.Time
	broadcaster
}

// NewMemoryLoader returns an empty MemoryLoader.
func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{
		templates:   map[string][]byte{},
		updatedAt:   map[string]time.Time{},
		broadcaster: newBroadcaster(),
	}
}

// Add registers or replaces name's bytes and emits TemplateChanged.
func (l *MemoryLoader) Add(name string, data []byte, at time.Time) {
	l.templates[name] = data
	l.updatedAt[name] = at
	l.emit(Event{Kind: TemplateChanged, Name: name})
}

// Remove deletes name and emits TemplateChanged.
func (l *MemoryLoader) Remove(name string) {
	delete(l.templates, name)
	delete(l.updatedAt, name)
	l.emit(Event{Kind: TemplateChanged, Name: name})
}

func (l *MemoryLoader) HasTemplate(name string) bool {
	_, ok := l.templates[name]
	return ok
}

func (l *MemoryLoader) Load(name string) ([]byte, bool) {
	data, ok := l.templates[name]
	return data, ok
}

func (l *MemoryLoader) HasTemplateChanged(name string, since time.Time) bool {
	at, ok := l.updatedAt[name]
	if !ok {
		return true
	}
	return at.After(since)
}
