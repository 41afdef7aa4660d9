package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lanbeam/lanbeam/pkg/types"
)

var (
	// ErrNotFound indicates the identifier has no index entry.
	ErrNotFound = errors.New("file not found")

	// ErrInconsistent indicates the index has an entry but the backing
	// file is gone. This is surfaced distinctly from ErrNotFound because
	// it signals on-disk corruption rather than a bad identifier.
	ErrInconsistent = errors.New("storage inconsistency: indexed file missing on disk")
)

// Store owns a directory of persisted file bytes and the in-memory index
// mapping identifier to metadata. The index lives only for the process
// lifetime; bytes on disk survive a restart but become unreachable
// without their index entries.
type Store struct {
	dir   string
	mutex sync.RWMutex
	index map[string]types.FileRecord
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Info().Str("dir", dir).Msg("blob store initialized")
	return &Store{
		dir:   dir,
		index: make(map[string]types.FileRecord),
	}, nil
}

// Dir returns the storage directory. Upload staging files are created
// here so the final rename into the store stays on one volume.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the on-disk location for an identifier.
func (s *Store) PathFor(id string) string {
	return filepath.Join(s.dir, id)
}

// Commit inserts a fully persisted record into the index. The insert is
// a single map operation under the lock, so concurrent lookups never
// observe a partial entry.
func (s *Store) Commit(record types.FileRecord) {
	s.mutex.Lock()
	s.index[record.ID] = record
	s.mutex.Unlock()

	log.Info().
		Str("id", record.ID).
		Str("name", record.Name).
		Int64("size", record.Size).
		Msg("file committed")
}

// Lookup returns the record for an identifier, or ErrNotFound.
func (s *Store) Lookup(id string) (types.FileRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, ok := s.index[id]
	if !ok {
		return types.FileRecord{}, ErrNotFound
	}
	return record, nil
}

// OpenRead opens the stored bytes for streaming. It re-validates that
// the backing file still exists: an indexed record with missing bytes is
// reported as ErrInconsistent, never downgraded to ErrNotFound. The
// returned reader is a single pass over the file; a second read must
// call OpenRead again.
func (s *Store) OpenRead(id string) (types.FileRecord, io.ReadCloser, error) {
	record, err := s.Lookup(id)
	if err != nil {
		return types.FileRecord{}, nil, err
	}

	file, err := os.Open(record.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("id", id).
				Str("path", record.Path).
				Msg("indexed file missing on disk")
			return types.FileRecord{}, nil, ErrInconsistent
		}
		log.Error().Err(err).Str("id", id).Str("path", record.Path).Msg("failed to open file")
		return types.FileRecord{}, nil, fmt.Errorf("failed to open file: %w", err)
	}

	return record, file, nil
}

// Remove deletes a record and its bytes. This is an administrative
// operation; the core upload/retrieval flows never call it.
func (s *Store) Remove(id string) error {
	s.mutex.Lock()
	record, ok := s.index[id]
	if !ok {
		s.mutex.Unlock()
		return ErrNotFound
	}
	delete(s.index, id)
	s.mutex.Unlock()

	if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Str("id", id).Str("path", record.Path).Msg("failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	log.Info().Str("id", id).Str("name", record.Name).Msg("file removed")
	return nil
}

// List returns a snapshot of all committed records.
func (s *Store) List() []types.FileRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]types.FileRecord, 0, len(s.index))
	for _, record := range s.index {
		records = append(records, record)
	}
	return records
}
