// Package ramfs is a file store that lives entirely in memory.  Directories
// exist implicitly: a directory is any prefix of a file's path.
package ramfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"waemom/src/lib/trust"
)

type RamFS struct {
	lock  sync.RWMutex
	files map[string][]byte
	log   *trust.Logger
}

func New(log *trust.Logger) *RamFS {
	if log == nil {
		log = trust.Default()
	}
	return &RamFS{files: make(map[string][]byte), log: log}
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// Write creates or replaces the file at p.  The store keeps its own copy.
func (r *RamFS) Write(p string, data []byte) error {
	p = clean(p)
	if p == "/" {
		return &fs.PathError{Op: "write", Path: p, Err: fs.ErrInvalid}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.isDirLocked(p) {
		return &fs.PathError{Op: "write", Path: p, Err: fs.ErrExist}
	}
	r.files[p] = append([]byte(nil), data...)
	r.log.Debugf("ramfs: wrote %s (%d bytes)", p, len(data))
	return nil
}

// Read returns a copy of the file at p.
func (r *RamFS) Read(p string) ([]byte, error) {
	p = clean(p)
	r.lock.RLock()
	defer r.lock.RUnlock()
	data, ok := r.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// List returns the names directly inside dir, sorted.  Subdirectories end
// in a slash.
func (r *RamFS) List(dir string) ([]string, error) {
	dir = clean(dir)
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	seen := map[string]bool{}
	for p := range r.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i+1]
		}
		seen[rest] = true
	}
	if len(seen) == 0 && dir != "/" {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: fs.ErrNotExist}
	}
	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

func (r *RamFS) isDirLocked(p string) bool {
	prefix := p + "/"
	for f := range r.files {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}
