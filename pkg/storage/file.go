package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes each table as a CSV file named after the table inside Dir.
// Existing files are replaced.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{Dir: dir}
}

// Path returns the file a table with the given name is written to.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Put writes the table to a temporary file in Dir and renames it into place,
// so readers never observe a half-written report.
func (s *FileStore) Put(t Table) error {
	if err := t.validate(); err != nil {
		return err
	}

	path := s.Path(t.Name)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrOutput, path, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := writeCSV(tmp, t); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrOutput, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrOutput, path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrOutput, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrOutput, path, err)
	}
	return nil
}

func writeCSV(f *os.File, t Table) error {
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return err
	}
	return w.Error()
}
