package loader

import (
	"io"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// FileLoader resolves template names against an ordered search-path
// list, each rooted in its own billy.Filesystem. Rooting every search
// path in an osfs.New chroot is what gives "a name that resolves
// outside the search root is rejected" for free: billy's osfs
// implementation refuses to Open a path that escapes its root, so
// FileLoader needs no hand-rolled `..`-stripping of its own.
type FileLoader struct {
	roots  []billy.Filesystem
	suffix string

	// immutable holds bytes for names beginning with ':' — bundled
	// resources that never change and are never mtime-probed.
	immutable map[string][]byte

	broadcaster
}

// NewFileLoader constructs a FileLoader searching each of searchPaths in
// order, appending suffix (if non-empty) to every resolved name.
func NewFileLoader(searchPaths []string, suffix string) *FileLoader {
	roots := make([]billy.Filesystem, len(searchPaths))
	for i, p := range searchPaths {
		roots[i] = osfs.New(p)
	}
	return &FileLoader{
		roots:       roots,
		suffix:      suffix,
		immutable:   map[string][]byte{},
		broadcaster: newBroadcaster(),
	}
}

// AddImmutable registers data under a bundled-resource name; the caller
// is expected to pass a name already prefixed with ':', the convention
// for immutable bundled resources that are never mtime-probed.
func (l *FileLoader) AddImmutable(name string, data []byte) {
	l.immutable[name] = data
	l.emit(Event{Kind: TemplateChanged, Name: name})
}

func (l *FileLoader) resolvedPath(name string) string {
	if l.suffix != "" && !strings.HasSuffix(name, l.suffix) {
		return name + l.suffix
	}
	return name
}

func (l *FileLoader) HasTemplate(name string) bool {
	if _, ok := l.immutable[name]; ok {
		return true
	}
	_, fs := l.find(name)
	return fs != nil
}

func (l *FileLoader) find(name string) (string, billy.Filesystem) {
	p := l.resolvedPath(name)
	for _, fs := range l.roots {
		if _, err := fs.Stat(p); err == nil {
			return p, fs
		}
	}
	return "", nil
}

func (l *FileLoader) Load(name string) ([]byte, bool) {
	if strings.HasPrefix(name, ":") {
		data, ok := l.immutable[name]
		return data, ok
	}
	p, fs := l.find(name)
	if fs == nil {
		return nil, false
	}
	f, err := fs.Open(p)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (l *FileLoader) HasTemplateChanged(name string, since time.Time) bool {
	if strings.HasPrefix(name, ":") {
		// immutable resources never change after being added
		return false
	}
	p, fs := l.find(name)
	if fs == nil {
		return true
	}
	info, err := fs.Stat(p)
	if err != nil {
		return true
	}
	return info.ModTime().After(since)
}

// Rescan walks every search root and emits AllTemplatesChanged; callers
// that know a root directory was bulk-replaced (a deploy, a git
// checkout) should call this instead of tracking individual names.
func (l *FileLoader) Rescan() {
	l.emit(Event{Kind: AllTemplatesChanged})
}
