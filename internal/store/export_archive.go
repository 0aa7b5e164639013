package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// ExportArchive keeps downloaded export files on disk as "<kind>/<filename>".
type ExportArchive struct {
	d        *diskv.Diskv
	basePath string
}

func NewExportArchive(basePath string) (*ExportArchive, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("export archive path is required")
	}
	return &ExportArchive{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: exportKeyToPath,
		InverseTransform:  exportPathToKey,
		CacheSizeMax:      1024 * 1024,
	}), basePath: basePath}, nil
}

// Save writes data under kind/name and returns the on-disk path.
func (a *ExportArchive) Save(kind, name string, data []byte) (string, error) {
	key, err := exportKey(kind, name)
	if err != nil {
		return "", err
	}
	if err := a.d.Write(key, data); err != nil {
		return "", err
	}
	return a.Path(kind, name), nil
}

func (a *ExportArchive) Read(kind, name string) ([]byte, error) {
	key, err := exportKey(kind, name)
	if err != nil {
		return nil, err
	}
	return a.d.Read(key)
}

func (a *ExportArchive) Path(kind, name string) string {
	return filepath.Join(a.basePath, SanitizeFilename(kind, "exports"), SanitizeFilename(name, "export.dat"))
}

// List returns archived keys sorted, optionally limited to one kind.
func (a *ExportArchive) List(ctx context.Context, kind string) []string {
	prefix := ""
	if kind = strings.TrimSpace(kind); kind != "" {
		prefix = SanitizeFilename(kind, "exports") + "/"
	}
	keys := []string{}
	for key := range a.d.KeysPrefix(prefix, ctx.Done()) {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SanitizeFilename strips directory components and control characters so a
// server-provided name can never escape the archive.
func SanitizeFilename(name, fallback string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '/' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

func exportKey(kind, name string) (string, error) {
	kind = SanitizeFilename(kind, "exports")
	name = SanitizeFilename(name, "")
	if name == "" {
		return "", ErrKeyRequired
	}
	return kind + "/" + name, nil
}

func exportKeyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func exportPathToKey(pathKey *diskv.PathKey) string {
	return strings.Join(append(append([]string{}, pathKey.Path...), pathKey.FileName), "/")
}
