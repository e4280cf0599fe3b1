package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = ".sessions-*.toml.tmp"
)

// FileStore persists sessions in a single TOML document. Writes go through
// a temp file + rename so a crash mid-write never truncates the document.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// OpenFile opens (or creates) a file-backed store at path.
func OpenFile(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	s := &FileStore{path: path}

	// Ensure the document exists and parses.
	if _, err := s.readDoc(); err != nil {
		return nil, err
	}
	return s, nil
}

// sessionRecord is the on-disk shape of one session.
type sessionRecord struct {
	ID              string     `toml:"id"`
	AccountID       string     `toml:"account_id"`
	Credential      string     `toml:"credential"`
	Status          string     `toml:"status"`
	LastSuccessAt   *time.Time `toml:"last_success_at,omitempty"`
	InProgressSince *time.Time `toml:"in_progress_since,omitempty"`
	ErrorReason     string     `toml:"error_reason,omitempty"`
}

// sessionsDoc is the top-level on-disk document.
type sessionsDoc struct {
	Sessions []sessionRecord `toml:"sessions"`
}

// ListByStatus implements Store. Results are ordered by ID ascending.
func (s *FileStore) ListByStatus(ctx context.Context, status Status) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.readDoc()
	if err != nil {
		return nil, err
	}

	var out []Session
	for _, rec := range doc.Sessions {
		if Status(rec.Status) == status {
			out = append(out, fromRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a session by ID.
func (s *FileStore) Put(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDoc()
	if err != nil {
		return err
	}

	rec := toRecord(sess)
	replaced := false
	for i := range doc.Sessions {
		if doc.Sessions[i].ID == rec.ID {
			doc.Sessions[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Sessions = append(doc.Sessions, rec)
	}

	return s.writeDoc(doc)
}

// UpdateFields applies a partial update to the session with the given ID.
func (s *FileStore) UpdateFields(ctx context.Context, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDoc()
	if err != nil {
		return err
	}

	for i := range doc.Sessions {
		if doc.Sessions[i].ID != id {
			continue
		}
		applyFields(&doc.Sessions[i], fields)
		return s.writeDoc(doc)
	}
	return fmt.Errorf("store: update %s: %w", id, ErrNotFound)
}

// CountByStatus returns the number of sessions per status.
func (s *FileStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.readDoc()
	if err != nil {
		return nil, err
	}

	counts := make(map[Status]int)
	for _, rec := range doc.Sessions {
		counts[Status(rec.Status)]++
	}
	return counts, nil
}

// Close implements Store. The file store holds no open handles.
func (s *FileStore) Close() error { return nil }

func applyFields(rec *sessionRecord, fields Fields) {
	if fields.Status != nil {
		rec.Status = string(*fields.Status)
	}
	if fields.LastSuccessAt != nil {
		t := fields.LastSuccessAt.UTC()
		rec.LastSuccessAt = &t
	}
	if fields.InProgressSince != nil {
		t := fields.InProgressSince.UTC()
		rec.InProgressSince = &t
	}
	if fields.ClearInProgress {
		rec.InProgressSince = nil
	}
	if fields.ErrorReason != nil {
		rec.ErrorReason = *fields.ErrorReason
	}
	if fields.ClearError {
		rec.ErrorReason = ""
	}
}

func fromRecord(rec sessionRecord) Session {
	return Session{
		ID:              rec.ID,
		AccountID:       rec.AccountID,
		Credential:      rec.Credential,
		LastSuccessAt:   rec.LastSuccessAt,
		Status:          Status(rec.Status),
		InProgressSince: rec.InProgressSince,
		ErrorReason:     rec.ErrorReason,
	}
}

func toRecord(sess Session) sessionRecord {
	return sessionRecord{
		ID:              sess.ID,
		AccountID:       sess.AccountID,
		Credential:      sess.Credential,
		Status:          string(sess.Status),
		LastSuccessAt:   sess.LastSuccessAt,
		InProgressSince: sess.InProgressSince,
		ErrorReason:     sess.ErrorReason,
	}
}

// readDoc loads the TOML document, returning an empty document if the
// file does not exist yet.
func (s *FileStore) readDoc() (*sessionsDoc, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &sessionsDoc{}, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	var doc sessionsDoc
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	return &doc, nil
}

// writeDoc writes the document atomically via temp file + rename.
func (s *FileStore) writeDoc(doc *sessionsDoc) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode sessions: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: rename temp file: %w", err)
	}
	return nil
}
