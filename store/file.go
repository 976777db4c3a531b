package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"geo-insights/models"
)

// JSONFile persists the collection as one indented JSON array.
type JSONFile struct {
	Path string
}

func (f JSONFile) Load(_ context.Context) ([]models.ContentRecord, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []models.ContentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return records, nil
}

// Save writes to a temporary file next to Path and renames it into place.
func (f JSONFile) Save(_ context.Context, records []models.ContentRecord) error {
	if records == nil {
		records = []models.ContentRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode content store: %w", err)
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// Multi saves through every persister and loads from the first one.
type Multi []Persister

func (m Multi) Load(ctx context.Context) ([]models.ContentRecord, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Load(ctx)
}

func (m Multi) Save(ctx context.Context, records []models.ContentRecord) error {
	var errs []error
	for _, p := range m {
		if err := p.Save(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
