package sqlite

import (
	"os"
	"path/filepath"

	"finplotter/internal/model"

	"github.com/pkg/errors"
)

var (
	_ model.CandleWriter = (*Store)(nil)
	_ model.CandleReader = (*Store)(nil)
)

// Store pairs the single-connection writer with a reader on the same file.
type Store struct {
	*Writer
	*Reader
}

// Open creates the parent directory of path if needed and opens a Store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}

	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		return nil, err
	}
	r, err := NewReader(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Store{Writer: w, Reader: r}, nil
}

// Close closes the reader and the writer.
func (s *Store) Close() error {
	rerr := s.Reader.Close()
	werr := s.Writer.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
