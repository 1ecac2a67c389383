package worker

import (
	"context"
	"os"
	"path/filepath"
)

// FileBlobLoader reads an uploaded source's bytes off local disk, rooted
// at STORAGE_ROOT.
type FileBlobLoader struct {
	Root string
}

func (l FileBlobLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if l.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.Root, path)
	}
	return os.ReadFile(path)
}
