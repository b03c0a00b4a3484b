// Package checkpoint persists resumable stage state as JSON files. Writes go
// through a temp file and rename so an interrupted process leaves either the
// previous or the new state on disk, never a torn file.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// Load decodes the file at path into v. found is false when the file does
// not exist, which is not an error.
func Load(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "checkpoint: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, eris.Wrapf(err, "checkpoint: decode %s", path)
	}
	return true, nil
}

// LoadCorpus reads a record array written by a previous stage. A missing or
// undecodable file is a fatal configuration error.
func LoadCorpus(path string) ([]model.EventRecord, error) {
	var records []model.EventRecord
	found, err := Load(path, &records)
	if err != nil {
		return nil, eris.Wrapf(model.ErrFatalConfig, "checkpoint: corpus %s: %v", path, err)
	}
	if !found {
		return nil, eris.Wrapf(model.ErrFatalConfig, "checkpoint: corpus %s does not exist", path)
	}
	return records, nil
}

// Save atomically replaces the checkpoint at path with v.
func Save(path string, v any) error {
	return WriteJSON(path, v)
}

// Remove deletes the checkpoint. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "checkpoint: remove %s", path)
	}
	return nil
}

// Exists reports whether a file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// State derives a stage's lifecycle from its checkpoint and output files.
func State(checkpointPath, outputPath string) model.StageState {
	switch {
	case Exists(checkpointPath):
		return model.StageInProgress
	case outputPath != "" && Exists(outputPath):
		return model.StageComplete
	default:
		return model.StageNotStarted
	}
}

// WriteJSON atomically writes v as indented JSON without HTML escaping.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "checkpoint: encode %s", path)
	}
	return WriteFile(path, buf.Bytes())
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "checkpoint: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "checkpoint: create temp for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "checkpoint: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "checkpoint: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrapf(err, "checkpoint: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return eris.Wrapf(err, "checkpoint: rename to %s", path)
	}
	return nil
}
