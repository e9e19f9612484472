package loader

import (
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitLoader reads templates out of a fixed commit of a go-git
// repository, a third Loader realization sitting alongside FileLoader
// and MemoryLoader. HasTemplateChanged compares the loader's pinned
// commit against the repository's current HEAD rather than per-file
// mtimes, since a git tree has no mtime of its own.
type GitLoader struct {
	repo   *git.Repository
	commit *object.Commit
	prefix string

	broadcaster
}

// NewGitLoader opens repo at ref (a branch, tag, or commit hash string)
// and serves templates from beneath prefix in that commit's tree.
func NewGitLoader(repo *git.Repository, ref, prefix string) (*GitLoader, error) {
	hash, err := resolveRef(repo, ref)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	return &GitLoader{repo: repo, commit: commit, prefix: prefix, broadcaster: newBroadcaster()}, nil
}

func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if h := plumbing.NewHash(ref); !h.IsZero() {
		if _, err := repo.CommitObject(h); err == nil {
			return h, nil
		}
	}
	r, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *r, nil
}

func (l *GitLoader) fullPath(name string) string {
	if l.prefix == "" {
		return name
	}
	return l.prefix + "/" + name
}

func (l *GitLoader) HasTemplate(name string) bool {
	tree, err := l.commit.Tree()
	if err != nil {
		return false
	}
	_, err = tree.File(l.fullPath(name))
	return err == nil
}

func (l *GitLoader) Load(name string) ([]byte, bool) {
	tree, err := l.commit.Tree()
	if err != nil {
		return nil, false
	}
	f, err := tree.File(l.fullPath(name))
	if err != nil {
		return nil, false
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, false
	}
	return []byte(contents), true
}

// HasTemplateChanged reports whether the repository's current HEAD
// differs from the commit this loader was pinned to at construction —
// a coarse, whole-repository staleness check rather than a per-file
// one, since `since` (a Program's compiled_at) has no direct
// correspondence to a commit's own timestamp granularity.
func (l *GitLoader) HasTemplateChanged(name string, since time.Time) bool {
	head, err := l.repo.Head()
	if err != nil {
		return false
	}
	return head.Hash() != l.commit.Hash
}

// Refresh re-points the loader at ref and, if the resolved commit
// differs from the previous one, emits AllTemplatesChanged.
func (l *GitLoader) Refresh(ref string) error {
	hash, err := resolveRef(l.repo, ref)
	if err != nil {
		return err
	}
	if hash == l.commit.Hash {
		return nil
	}
	commit, err := l.repo.CommitObject(hash)
	if err != nil {
		return err
	}
	l.commit = commit
	l.emit(Event{Kind: AllTemplatesChanged})
	return nil
}
