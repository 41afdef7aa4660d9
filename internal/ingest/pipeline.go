package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lanbeam/lanbeam/internal/blob"
	"github.com/lanbeam/lanbeam/pkg/types"
)

var (
	// ErrEmptyUpload indicates the stream produced no bytes.
	ErrEmptyUpload = errors.New("no file data received")

	// ErrInvalidFilename indicates the filename was missing or empty
	// after sanitization.
	ErrInvalidFilename = errors.New("invalid filename")
)

// Pipeline consumes upload streams, stages bytes to a temporary file and
// atomically commits them into the blob store under a fresh identifier.
type Pipeline struct {
	store *blob.Store
}

// New creates a pipeline that commits into store.
func New(store *blob.Store) *Pipeline {
	return &Pipeline{store: store}
}

// Ingest reads content chunk by chunk into a staging file, counting bytes
// as it goes, then moves the staged file into the store and registers the
// record. On any failure the staging file is discarded and no record
// becomes visible.
func (p *Pipeline) Ingest(ctx context.Context, filename string, content io.Reader) (types.FileRecord, error) {
	startTime := time.Now()

	name := SanitizeFilename(filename)
	if name == "" {
		return types.FileRecord{}, ErrInvalidFilename
	}

	select {
	case <-ctx.Done():
		return types.FileRecord{}, ctx.Err()
	default:
	}

	// Staged on the same volume as the store so the final move is atomic.
	tempFile, err := os.CreateTemp(p.store.Dir(), ".upload-*.tmp")
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("failed to create staging file")
		return types.FileRecord{}, fmt.Errorf("failed to create staging file: %w", err)
	}
	tempPath := tempFile.Name()

	// Cleanup of the staging file on any failure path.
	defer func() {
		tempFile.Close()
		if _, err := os.Stat(tempPath); err == nil {
			os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	bytesWritten, err := io.Copy(io.MultiWriter(tempFile, hasher), content)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("failed to write upload stream")
		return types.FileRecord{}, fmt.Errorf("failed to write upload stream: %w", err)
	}
	if bytesWritten == 0 {
		return types.FileRecord{}, ErrEmptyUpload
	}

	if err := tempFile.Sync(); err != nil {
		log.Error().Err(err).Str("name", name).Msg("failed to sync staging file")
		return types.FileRecord{}, fmt.Errorf("failed to sync staging file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return types.FileRecord{}, fmt.Errorf("failed to close staging file: %w", err)
	}

	id := uuid.New().String()
	finalPath := p.store.PathFor(id)
	if err := os.Rename(tempPath, finalPath); err != nil {
		log.Error().Err(err).Str("id", id).Str("temp_path", tempPath).Msg("failed to move staged file into store")
		return types.FileRecord{}, fmt.Errorf("failed to move staged file into store: %w", err)
	}

	record := types.FileRecord{
		ID:   id,
		Name: name,
		Size: bytesWritten,
		Path: finalPath,
	}
	p.store.Commit(record)

	log.Info().
		Str("id", id).
		Str("name", name).
		Int64("size", bytesWritten).
		Str("checksum", hex.EncodeToString(hasher.Sum(nil))).
		Dur("duration", time.Since(startTime)).
		Msg("file ingested")

	return record, nil
}

// SanitizeFilename strips path separators and control characters so a
// client-supplied name can never escape the store directory.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
