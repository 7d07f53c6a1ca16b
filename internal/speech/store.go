package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"VisionAssist/internal/metrics"
)

var (
	ErrArtifactNotFound = errors.New("audio is no longer available")
	ErrStoreClosed      = errors.New("artifact store is closed")
)

type artifactEntry struct {
	artifact *Artifact
	timer    *time.Timer
}

// ArtifactStore tracks synthesized files and deletes each one after the
// retention window, on Release or on Close, whichever comes first.
type ArtifactStore struct {
	mu        sync.Mutex
	entries   map[string]*artifactEntry
	retention time.Duration
	reg       *metrics.Registry
	closed    bool
}

// NewArtifactStore creates a store. retention <= 0 keeps files until they
// are released or the store is closed.
func NewArtifactStore(retention time.Duration, reg *metrics.Registry) *ArtifactStore {
	return &ArtifactStore{
		entries:   make(map[string]*artifactEntry),
		retention: retention,
		reg:       reg,
	}
}

// Register takes ownership of the artifact's file
func (s *ArtifactStore) Register(ctx context.Context, a *Artifact) error {
	if a == nil || a.ID == "" {
		return errors.New("invalid artifact")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = os.Remove(a.Path)
		return ErrStoreClosed
	}
	entry := &artifactEntry{artifact: a}
	if s.retention > 0 {
		id := a.ID
		entry.timer = time.AfterFunc(s.retention, func() {
			_ = s.Release(context.Background(), id)
		})
	}
	s.entries[a.ID] = entry
	s.mu.Unlock()

	log.Ctx(ctx).Debug().Str("artifact_id", a.ID).Str("path", a.Path).Int64("bytes", a.Size).Msg("speech artifact registered")
	s.reg.Inc(ctx, metrics.SpeechFilesCreated, map[string]string{"language": a.Language}, 1)
	s.reg.Inc(ctx, metrics.SpeechBytesWritten, nil, a.Size)
	return nil
}

// Get returns the artifact metadata
func (s *ArtifactStore) Get(id string) (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.artifact, true
}

// Open opens the artifact's file for reading. The caller closes it.
func (s *ArtifactStore) Open(id string) (*os.File, *Artifact, error) {
	a, ok := s.Get(id)
	if !ok {
		return nil, nil, ErrArtifactNotFound
	}
	f, err := os.Open(a.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrArtifactNotFound
		}
		return nil, nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	return f, a, nil
}

// Release stops the reaper timer and deletes the file. Unknown IDs are ignored.
func (s *ArtifactStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.remove(ctx, e)
}

func (s *ArtifactStore) remove(ctx context.Context, e *artifactEntry) error {
	if e.timer != nil {
		e.timer.Stop()
	}
	err := os.Remove(e.artifact.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Ctx(ctx).Warn().Err(err).Str("path", e.artifact.Path).Msg("failed to delete speech artifact")
		return fmt.Errorf("failed to delete audio file: %w", err)
	}

	log.Ctx(ctx).Debug().Str("artifact_id", e.artifact.ID).Msg("speech artifact deleted")
	s.reg.Inc(ctx, metrics.SpeechFilesDeleted, nil, 1)
	return nil
}

// Len returns the number of live artifacts
func (s *ArtifactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close deletes every remaining file. Later registrations are refused.
func (s *ArtifactStore) Close() error {
	s.mu.Lock()
	s.closed = true
	entries := s.entries
	s.entries = make(map[string]*artifactEntry)
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := s.remove(context.Background(), e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
