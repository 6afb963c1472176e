package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Origin names where a table came from.
type Origin string

const (
	OriginUpload     Origin = "upload"
	OriginConfigured Origin = "configured"
	OriginWorkDir    Origin = "cwd"
	OriginDerived    Origin = "derived"
	OriginSynthetic  Origin = "synthetic"
	OriginDefault    Origin = "default"
	OriginAbsent     Origin = "absent"
)

// Source is one candidate location for a table: uploaded bytes or a file path.
type Source struct {
	Origin Origin
	Data   []byte
	Path   string
}

// Upload wraps uploaded bytes. A nil or empty upload is absent.
func Upload(data []byte) Source {
	return Source{Origin: OriginUpload, Data: data}
}

// File is a path source with the given origin. An empty path is absent.
func File(origin Origin, path string) Source {
	return Source{Origin: origin, Path: path}
}

// present reports whether the source has anything to read.
func (s Source) present() bool {
	if s.Path == "" {
		return len(s.Data) > 0
	}
	info, err := os.Stat(s.Path)
	return err == nil && info.Mode().IsRegular()
}

// identity returns the cache key: the content hash of uploaded bytes, or the
// absolute path with size and modification time for files.
func (s Source) identity() (string, error) {
	if s.Path == "" {
		sum := sha256.Sum256(s.Data)
		return "sha256:" + hex.EncodeToString(sum[:]), nil
	}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("file:%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

func (s Source) read() ([]byte, error) {
	if s.Path == "" {
		return s.Data, nil
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSourceAbsent
	}
	return data, err
}

func (s Source) String() string {
	if s.Path == "" {
		return string(s.Origin)
	}
	return string(s.Origin) + ":" + s.Path
}
