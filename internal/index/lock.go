package index

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// nameLocks serializes ingestion operations per corpus or model name. The
// in-process mutex covers workers inside one process; the advisory file
// lock covers a CLI ingest racing a server ingest on the same host.
// Operations on different names proceed concurrently. The guard is
// advisory only; the conflict check on collection create remains the
// correctness backstop.
type nameLocks struct {
	dir string
	mu  sync.Map // name -> *sync.Mutex
}

func newNameLocks(dir string) *nameLocks {
	return &nameLocks{dir: dir}
}

// acquire blocks until the name is held and returns the release function.
func (g *nameLocks) acquire(name string) (func(), error) {
	v, _ := g.mu.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	if g.dir == "" {
		return mu.Unlock, nil
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		mu.Unlock()
		return nil, ewberrors.ConfigError("cannot create ingest lock directory", err)
	}
	fl := flock.New(filepath.Join(g.dir, name+".lock"))
	if err := fl.Lock(); err != nil {
		mu.Unlock()
		return nil, ewberrors.InternalError("cannot acquire ingest lock for "+name, err)
	}
	return func() {
		_ = fl.Unlock()
		mu.Unlock()
	}, nil
}
