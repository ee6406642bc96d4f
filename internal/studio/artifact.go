package studio

import (
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const artifactScheme = "blob:bananagate/"

// Artifact is generated content addressable by its URL for as long as the
// owning Store keeps it.
type Artifact struct {
	ID        string
	URL       string
	MIMEType  string
	Data      []byte
	Prompt    string
	CreatedAt time.Time
}

var knownExt = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
	"video/mp4":  "mp4",
	"video/webm": "webm",
}

// Filename is <prefix>-<unix ms>.<ext>.
func (a *Artifact) Filename(prefix string) string {
	return fmt.Sprintf("%s-%d.%s", prefix, a.CreatedAt.UnixMilli(), extFor(a.MIMEType))
}

func extFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	if ext, ok := knownExt[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

type Store struct {
	mu    sync.RWMutex
	items map[string]*Artifact
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{items: make(map[string]*Artifact), now: time.Now}
}

func (s *Store) Put(mimeType string, data []byte, prompt string) *Artifact {
	id := uuid.NewString()
	a := &Artifact{
		ID:        id,
		URL:       artifactScheme + id,
		MIMEType:  mimeType,
		Data:      data,
		Prompt:    prompt,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.items[id] = a
	s.mu.Unlock()
	return a
}

// Get accepts either an artifact ID or its URL.
func (s *Store) Get(ref string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[strings.TrimPrefix(ref, artifactScheme)]
	return a, ok
}

func (s *Store) Delete(ref string) {
	s.mu.Lock()
	delete(s.items, strings.TrimPrefix(ref, artifactScheme))
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
