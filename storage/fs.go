package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	fsItemExt = ".json"
	// fsLongExt marks items named by key hash. Their first line is the
	// base64url key.
	fsLongExt = ".kjson"
	fsTmpExt  = ".tmp"

	// fsMaxName is the usual file name limit (ext4, APFS, NTFS).
	fsMaxName = 255
)

/*
FS keeps one file per item under a directory of an afero filesystem.

Keys are base64url encoded into file names, so any key is accepted. A key too
long for that is stored under its sha256 instead, with the encoded key on the
file's first line. Writes go to a temp file that is renamed over the target,
which keeps a concurrent reader from seeing half a value.
*/
type FS struct {
	fs  afero.Fs
	dir string

	mu     sync.RWMutex
	closed bool
}

// NewFS roots a backend at dir on fs, creating the directory if needed.
func NewFS(fs afero.Fs, dir string) (*FS, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache dir %s", dir)
	}
	return &FS{fs: fs, dir: dir}, nil
}

// NewOsFS is NewFS on the real filesystem.
func NewOsFS(dir string) (*FS, error) {
	return NewFS(afero.NewOsFs(), dir)
}

// path returns the file for key and, for hashed names, the header line
// the file starts with.
func (f *FS) path(key string) (string, string) {
	enc := base64.RawURLEncoding.EncodeToString([]byte(key))
	if len(enc)+len(fsItemExt)+len(fsTmpExt) <= fsMaxName {
		return filepath.Join(f.dir, enc+fsItemExt), ""
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+fsLongExt), enc + "\n"
}

func (f *FS) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *FS) GetItem(ctx context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.check(ctx); err != nil {
		return "", false, err
	}
	name, header := f.path(key)
	b, err := afero.ReadFile(f.fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "read item %q", key)
	}
	if header == "" {
		return string(b), true, nil
	}
	value, ok := strings.CutPrefix(string(b), header)
	if !ok {
		// another key with the same hash
		return "", false, nil
	}
	return value, true, nil
}

func (f *FS) SetItem(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return err
	}
	target, header := f.path(key)
	tmp := target + fsTmpExt
	if err := afero.WriteFile(f.fs, tmp, []byte(header+value), 0o644); err != nil {
		return errors.Wrapf(err, "write item %q", key)
	}
	if err := f.fs.Rename(tmp, target); err != nil {
		_ = f.fs.Remove(tmp)
		return errors.Wrapf(err, "commit item %q", key)
	}
	return nil
}

func (f *FS) RemoveItem(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return err
	}
	return f.remove(key)
}

func (f *FS) remove(key string) error {
	name, _ := f.path(key)
	err := f.fs.Remove(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove item %q", key)
	}
	return nil
}

func (f *FS) GetAllKeys(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, f.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", f.dir)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() {
			continue
		}
		var enc string
		switch {
		case strings.HasSuffix(name, fsItemExt):
			enc = strings.TrimSuffix(name, fsItemExt)
		case strings.HasSuffix(name, fsLongExt):
			if enc, err = f.readHeader(name); err != nil {
				return nil, err
			}
		default:
			continue
		}
		if enc == "" {
			continue
		}
		k, err := base64.RawURLEncoding.DecodeString(enc)
		if err != nil {
			// not ours
			continue
		}
		keys = append(keys, string(k))
	}
	return keys, nil
}

// readHeader returns the encoded key on the first line of a hashed item.
func (f *FS) readHeader(name string) (string, error) {
	b, err := afero.ReadFile(f.fs, filepath.Join(f.dir, name))
	if err != nil {
		return "", errors.Wrapf(err, "read %s", name)
	}
	enc, _, ok := strings.Cut(string(b), "\n")
	if !ok {
		return "", nil
	}
	return enc, nil
}

func (f *FS) MultiRemove(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return err
	}
	var first error
	for _, k := range keys {
		if err := f.remove(k); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *FS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
