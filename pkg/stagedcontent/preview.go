package stagedcontent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// LocalPreviewAllocator is the default PreviewAllocator. It mints process-
// local handles of the form local-preview://<id> and tracks release so the
// exactly-once discipline is observable in tests.
type LocalPreviewAllocator struct {
	mu   sync.Mutex
	live map[string]*FileSource
}

// NewLocalPreviewAllocator creates a new local preview allocator
func NewLocalPreviewAllocator() *LocalPreviewAllocator {
	return &LocalPreviewAllocator{
		live: make(map[string]*FileSource),
	}
}

func (a *LocalPreviewAllocator) Allocate(file *FileSource) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	url := fmt.Sprintf("local-preview://%s", uuid.NewString())
	a.live[url] = file
	return url
}

func (a *LocalPreviewAllocator) Release(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.live, url)
}

// LiveCount reports how many allocated handles have not been released.
func (a *LocalPreviewAllocator) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.live)
}
