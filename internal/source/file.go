package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/opensource-access/kestrel/internal/domain"
)

// FileSource reads the bulk history from a local JSON snapshot with the
// same keyed-record shape as the remote feed. A missing file yields an
// empty history, not an error.
type FileSource struct {
	path string
}

// NewFileSource creates a snapshot-backed historical source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchHistorical returns every event in the snapshot.
func (s *FileSource) FetchHistorical(ctx context.Context) ([]domain.AccessEvent, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("historical snapshot not found, continuing without history",
			"path", s.path,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var records map[string]wireEvent
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return decodeBatch(records, domain.OriginHistorical), nil
}
