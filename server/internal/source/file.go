package source

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// File reads stages from a flat file on every call.
type File struct {
	path string
}

// NewFile returns a File source for path. The file is not opened until Stages
// is called.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file the source reads from.
func (f *File) Path() string { return f.path }

// Stages reads and decodes the whole file.
func (f *File) Stages(_ context.Context) ([]types.StageRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, unavailable("read %q: %v", f.path, err)
	}

	var stages []types.StageRecord
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &stages); err != nil {
			return nil, unavailable("parse yaml %q: %v", f.path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&stages); err != nil {
			return nil, unavailable("parse json %q: %v", f.path, err)
		}
	}
	return stages, nil
}
