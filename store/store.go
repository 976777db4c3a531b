// Package store keeps the deduplicated collection of ContentRecords.
//
// A Store is constructed (optionally loading prior persisted state), mutated
// only through Add, and written back with Flush at the end of a run. It is
// not safe for concurrent writers; callers serialize Add.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"geo-insights/models"
)

var ErrValidation = errors.New("store: invalid record")

type AddResult string

const (
	Inserted  AddResult = "inserted"
	Duplicate AddResult = "duplicate"
	Updated   AddResult = "updated"
)

// Persister moves the full ordered collection to and from durable storage.
type Persister interface {
	Load(ctx context.Context) ([]models.ContentRecord, error)
	Save(ctx context.Context, records []models.ContentRecord) error
}

type Store struct {
	records       []models.ContentRecord
	byID          map[string]int
	byFingerprint map[string]int
	persister     Persister
	logger        *zap.Logger
}

// New returns an empty store. persister may be nil for an in-memory store.
func New(persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		byID:          make(map[string]int),
		byFingerprint: make(map[string]int),
		persister:     persister,
		logger:        logger,
	}
}

// Open returns a store primed with the persisted collection, merged through
// the same rules as Add so a corrupt or duplicated file cannot break them.
func Open(ctx context.Context, persister Persister, logger *zap.Logger) (*Store, error) {
	s := New(persister, logger)
	if persister == nil {
		return s, nil
	}

	prior, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load content store: %w", err)
	}
	var skipped int
	for _, rec := range prior {
		if _, err := s.Add(rec); err != nil {
			skipped++
			s.logger.Warn("Skipping invalid persisted record", zap.String("doc_id", rec.DocID), zap.Error(err))
		}
	}
	s.logger.Info("Content store loaded",
		zap.Int("records", len(s.records)),
		zap.Int("persisted", len(prior)),
		zap.Int("skipped", skipped))
	return s, nil
}

// Add inserts rec, replaces the record with the same doc_id, or reports a
// duplicate when another record already carries rec's fingerprint. Records
// without a fingerprint (no text) are keyed by doc_id alone.
func (s *Store) Add(rec models.ContentRecord) (AddResult, error) {
	if rec.URL == "" {
		return "", fmt.Errorf("%w: missing url (doc_id %q)", ErrValidation, rec.DocID)
	}
	if rec.DocID == "" {
		return "", fmt.Errorf("%w: missing doc_id (url %q)", ErrValidation, rec.URL)
	}

	if _, ok := s.byFingerprint[rec.Fingerprint]; ok && rec.Fingerprint != "" {
		return Duplicate, nil
	}

	if idx, ok := s.byID[rec.DocID]; ok {
		old := s.records[idx]
		if !old.FirstSeen.IsZero() {
			rec.FirstSeen = old.FirstSeen
		}
		delete(s.byFingerprint, old.Fingerprint)
		s.records[idx] = rec
		s.indexFingerprint(rec.Fingerprint, idx)
		return Updated, nil
	}

	idx := len(s.records)
	s.records = append(s.records, rec)
	s.byID[rec.DocID] = idx
	s.indexFingerprint(rec.Fingerprint, idx)
	return Inserted, nil
}

func (s *Store) indexFingerprint(fp string, idx int) {
	if fp != "" {
		s.byFingerprint[fp] = idx
	}
}

// GetByEntity returns the entity's records in insertion order.
func (s *Store) GetByEntity(name string) []models.ContentRecord {
	var out []models.ContentRecord
	for _, rec := range s.records {
		if rec.EntityName == name {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) GetByType(entityType models.EntityType) []models.ContentRecord {
	var out []models.ContentRecord
	for _, rec := range s.records {
		if rec.EntityType == entityType {
			out = append(out, rec)
		}
	}
	return out
}

// Entities returns the distinct entity names in order of first insertion.
func (s *Store) Entities() []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range s.records {
		if !seen[rec.EntityName] {
			seen[rec.EntityName] = true
			names = append(names, rec.EntityName)
		}
	}
	return names
}

func (s *Store) All() []models.ContentRecord {
	return append([]models.ContentRecord(nil), s.records...)
}

func (s *Store) Len() int {
	return len(s.records)
}

// Flush writes the whole collection through the persister.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.All()); err != nil {
		return fmt.Errorf("flush content store: %w", err)
	}
	s.logger.Info("Content store flushed", zap.Int("records", len(s.records)))
	return nil
}
