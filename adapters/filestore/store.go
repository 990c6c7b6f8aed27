// Package filestore persists one JSON document per carrier under a models
// directory, using the write-temp/fsync/rename discipline so a crashed or
// failed save never clobbers the last good model.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
	"screwdiag/internal"
	"screwdiag/ports"
)

const (
	modelSuffix = ".json"
	tempSuffix  = ".json.tmp"
	dirPerm     = 0755
	filePerm    = 0644
)

// Store implements ports.ModelStore on the local filesystem
type Store struct {
	dir string
	log *internal.Logger
}

// NewStore creates a file store rooted at dir, creating it if needed
func NewStore(dir string, logger *internal.Logger) (*Store, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create models dir %s: %v", core.ErrPersistenceFailed, dir, err)
	}
	return &Store{dir: dir, log: logger}, nil
}

var _ ports.ModelStore = (*Store)(nil)

// Load reads and validates the model for a carrier. Absence returns
// (nil, nil); a malformed or schema-mismatched file returns
// core.ErrPersistenceCorruption.
func (s *Store) Load(_ context.Context, carrierID core.CarrierID) (*carrier.Model, error) {
	path, err := s.modelPath(carrierID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrPersistenceFailed, path, err)
	}

	var model carrier.Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, core.NewCorruptionError(carrierID, err)
	}
	if model.SchemaVersion != carrier.SchemaVersion {
		return nil, core.NewCorruptionError(carrierID,
			fmt.Errorf("schema_version %d, want %d", model.SchemaVersion, carrier.SchemaVersion))
	}
	return &model, nil
}

// Save writes the full serialized model to a temp file in the same
// directory, syncs it, and renames it over the target. The rename is
// atomic on the target filesystem; any failure removes the temp file and
// leaves the existing model untouched.
func (s *Store) Save(_ context.Context, model *carrier.Model) error {
	if err := model.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	path, err := s.modelPath(model.CarrierID)
	if err != nil {
		return err
	}
	tmpPath := strings.TrimSuffix(path, modelSuffix) + tempSuffix

	payload, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal carrier %s: %v", core.ErrPersistenceFailed, model.CarrierID, err)
	}

	if err := s.writeAndRename(tmpPath, path, payload); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn("could not remove temp model file %s: %v", tmpPath, rmErr)
		}
		return err
	}
	s.log.WithCarrier(model.CarrierID).Debug("model saved (%d bytes)", len(payload))
	return nil
}

func (s *Store) writeAndRename(tmpPath, path string, payload []byte) error {
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open temp %s: %v", core.ErrPersistenceFailed, tmpPath, err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return fmt.Errorf("%w: write temp %s: %v", core.ErrPersistenceFailed, tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: sync temp %s: %v", core.ErrPersistenceFailed, tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close temp %s: %v", core.ErrPersistenceFailed, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", core.ErrPersistenceFailed, path, err)
	}
	return nil
}

// Delete removes the persisted model for a carrier. Deleting an absent
// model is a no-op.
func (s *Store) Delete(_ context.Context, carrierID core.CarrierID) error {
	path, err := s.modelPath(carrierID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %s: %v", core.ErrPersistenceFailed, path, err)
	}
	return nil
}

// List returns the carrier IDs with a persisted model, in file name order
// (os.ReadDir sorts directory entries by name).
func (s *Store) List(_ context.Context) ([]core.CarrierID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read models dir %s: %v", core.ErrPersistenceFailed, s.dir, err)
	}
	var ids []core.CarrierID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, modelSuffix) || strings.HasSuffix(name, tempSuffix) {
			continue
		}
		ids = append(ids, core.CarrierID(strings.TrimSuffix(name, modelSuffix)))
	}
	return ids, nil
}

func (s *Store) modelPath(carrierID core.CarrierID) (string, error) {
	id, err := core.ParseCarrierID(string(carrierID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	return filepath.Join(s.dir, id.String()+modelSuffix), nil
}
