package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoaderLoadAndSuffix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.twig"), []byte("hi"), 0o644))

	l := NewFileLoader([]string{dir}, ".twig")
	assert.True(t, l.HasTemplate("hello"))
	data, ok := l.Load("hello")
	require.True(t, ok)
	assert.Equal(t, "hi", string(data))

	assert.False(t, l.HasTemplate("missing"))
	_, ok = l.Load("missing")
	assert.False(t, ok)
}

func TestFileLoaderSearchPathOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "a.twig"), []byte("from second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(first, "a.twig"), []byte("from first"), 0o644))

	l := NewFileLoader([]string{first, second}, ".twig")
	data, ok := l.Load("a")
	require.True(t, ok)
	assert.Equal(t, "from first", string(data))
}

func TestFileLoaderHasTemplateChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.twig")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	l := NewFileLoader([]string{dir}, ".twig")
	before := time.Now()
	assert.False(t, l.HasTemplateChanged("a", before.Add(time.Hour)))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	assert.True(t, l.HasTemplateChanged("a", before))
}

func TestFileLoaderImmutable(t *testing.T) {
	l := NewFileLoader(nil, ".twig")
	l.AddImmutable(":bundled", []byte("fixed"))
	assert.True(t, l.HasTemplate(":bundled"))
	data, ok := l.Load(":bundled")
	require.True(t, ok)
	assert.Equal(t, "fixed", string(data))
	assert.False(t, l.HasTemplateChanged(":bundled", time.Now().Add(time.Hour)))
}

func TestFileLoaderRescanEmitsAllTemplatesChanged(t *testing.T) {
	l := NewFileLoader([]string{t.TempDir()}, ".twig")
	var got []Event
	l.Subscribe(func(ev Event) { got = append(got, ev) })
	l.Rescan()
	require.Len(t, got, 1)
	assert.Equal(t, AllTemplatesChanged, got[0].Kind)
}

func TestMemoryLoaderAddRemove(t *testing.T) {
	l := NewMemoryLoader()
	var events []Event
	l.Subscribe(func(ev Event) { events = append(events, ev) })

	l.Add("a", []byte("1"), time.Now())
	assert.True(t, l.HasTemplate("a"))
	data, ok := l.Load("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(data))

	l.Remove("a")
	assert.False(t, l.HasTemplate("a"))
	require.Len(t, events, 2)
	assert.Equal(t, TemplateChanged, events[0].Kind)
	assert.Equal(t, "a", events[1].Name)
}

func TestMemoryLoaderHasTemplateChanged(t *testing.T) {
	l := NewMemoryLoader()
	base := time.Now()
	l.Add("a", []byte("1"), base)

	assert.False(t, l.HasTemplateChanged("a", base.Add(time.Second)))
	assert.True(t, l.HasTemplateChanged("a", base.Add(-time.Second)))
	assert.True(t, l.HasTemplateChanged("missing", base))
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	l := NewMemoryLoader()
	count := 0
	unsub := l.Subscribe(func(Event) { count++ })
	l.Add("a", []byte("1"), time.Now())
	assert.Equal(t, 1, count)

	unsub()
	l.Add("b", []byte("2"), time.Now())
	assert.Equal(t, 1, count)
}
