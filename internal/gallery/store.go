package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gallery/internal/fsutil"
	"gallery/internal/oops"
)

// ErrNotFound is returned by Open for names with no stored image.
var ErrNotFound = fmt.Errorf("image not found: %w", os.ErrNotExist)

// Image is a stored file as seen by the listing.
type Image struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store keeps images as flat files in a single directory. The directory is
// the only record of what exists; modification times order the listing.
type Store struct {
	root string
}

// NewStore returns a store rooted at root. The directory need not exist yet.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

func (s *Store) Root() string {
	return s.root
}

// List returns stored images, newest first. A missing root yields an empty
// list.
func (s *Store) List(ctx context.Context) ([]Image, error) {
	ents, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Image{}, nil
		}
		return nil, oops.New(err, "failed to read storage root")
	}

	images := make([]Image, 0, len(ents))
	for _, e := range ents {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// dot-files are in-flight writes
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		images = append(images, Image{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(images, func(i, j int) bool {
		if !images[i].ModTime.Equal(images[j].ModTime) {
			return images[i].ModTime.After(images[j].ModTime)
		}
		return images[i].Name < images[j].Name
	})
	return images, nil
}

// Write streams r into the store under name, creating the root if needed.
// The file appears under its final name only once fully written.
func (s *Store) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	dst, err := fsutil.Resolve(s.root, name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return 0, oops.New(err, "failed to create storage root")
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return 0, oops.New(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		return 0, oops.New(err, "failed to write upload")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, oops.New(err, "failed to sync upload")
	}
	if err := tmp.Close(); err != nil {
		return 0, oops.New(err, "failed to close upload")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, oops.New(err, "failed to chmod upload")
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, oops.New(err, "failed to move upload into place")
	}
	return n, nil
}

// Open returns the named image for reading. The caller closes the file.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	p, err := fsutil.Resolve(s.root, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, oops.New(err, "failed to open image")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, oops.New(err, "failed to stat image")
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrNotFound
	}
	return f, st, nil
}

// Delete removes the named image. Deleting a name that does not exist is not
// an error.
func (s *Store) Delete(name string) error {
	p, err := fsutil.Resolve(s.root, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.New(err, "failed to delete image")
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
