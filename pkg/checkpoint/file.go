package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/pgsyncd/pkg/log"
)

// FileStore persists the checkpoint as an ASCII decimal integer in
// <dir>/.<name>, matching §6's checkpoint persistence rule. Set writes
// through a temp-file-and-rename so a reader never observes a partially
// written value, which is the strongest guarantee the "last successful
// set wins" contract in §4.1 requires.
type FileStore struct {
	dir  string
	name string
}

// NewFileStore returns a FileStore rooted at dir for sync name.
func NewFileStore(dir, name string) *FileStore {
	return &FileStore{dir: dir, name: name}
}

func (f *FileStore) path() string {
	return filepath.Join(f.dir, "."+f.name)
}

func (f *FileStore) Validate(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("checkpoint directory %q does not exist or is not readable: %w", f.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("checkpoint path %q is not a directory", f.dir)
	}
	probe := filepath.Join(f.dir, ".pgsyncd-write-probe")
	if err := os.WriteFile(probe, []byte{}, 0o600); err != nil {
		return fmt.Errorf("checkpoint directory %q is not writable: %w", f.dir, err)
	}
	_ = os.Remove(probe)
	return nil
}

func (f *FileStore) Get(ctx context.Context) (*int64, error) {
	data, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint file %q: %w", f.path(), err)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing checkpoint file %q: %w", f.path(), err)
	}
	return &value, nil
}

func (f *FileStore) Set(ctx context.Context, value int64) error {
	tmp, err := os.CreateTemp(f.dir, "."+f.name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(strconv.FormatInt(value, 10)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, f.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming checkpoint file into place: %w", err)
	}
	return nil
}

func (f *FileStore) Teardown(ctx context.Context) error {
	if err := os.Remove(f.path()); err != nil {
		if os.IsNotExist(err) {
			log.WithComponent("checkpoint").Warn().Str("path", f.path()).Msg("checkpoint file not found during teardown")
		} else {
			log.WithComponent("checkpoint").Warn().Err(err).Str("path", f.path()).Msg("removing checkpoint file during teardown failed")
		}
	}
	return nil
}
