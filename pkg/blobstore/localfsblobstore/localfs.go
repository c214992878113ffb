// Writes your blobs to local filesystem
package localfsblobstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/logex"
	"golang.org/x/sys/unix"
)

func New(path string, logger *log.Logger) *localFs {
	return &localFs{
		path: path,
		log:  logex.Levels(logex.NonNil(logger)),
	}
}

type localFs struct {
	path string
	log  *logex.Leveled
}

func (l *localFs) Store(ctx context.Context, name string, content io.Reader) (int64, error) {
	filename := l.getPath(name)

	// does not error if already exists
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return 0, err
	}

	// blob names are allocator-claimed before we get here, so a same-name
	// write can only be a retry of ourselves - still refuse it to keep
	// Store() idempotency violations loud
	blobExists, err := fileexists.Exists(filename)
	if err != nil {
		return 0, err
	}

	if blobExists {
		return 0, fmt.Errorf("blob already exists: %s", name)
	}

	var bytesWritten int64

	if err := atomicfilewrite.Write(filename, func(writer io.Writer) error {
		n, err := io.Copy(writer, content)
		bytesWritten = n
		return err
	}); err != nil {
		return bytesWritten, err
	}

	return bytesWritten, nil
}

func (l *localFs) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(l.getPath(name))
}

func (l *localFs) Mountable(ctx context.Context) error {
	if err := os.MkdirAll(l.path, 0755); err != nil {
		return err
	}

	// MkdirAll is a no-op for an existing dir even when it is not ours to
	// write to, so probe writability explicitly
	if err := unix.Access(l.path, unix.W_OK); err != nil {
		return fmt.Errorf("upload dir %s not writable: %v", l.path, err)
	}

	return nil
}

func (l *localFs) getPath(name string) string {
	if len(name) < 2 {
		return filepath.Join(l.path, name)
	}

	// blob names start with the 62-alphabet asset ID, so first two chars
	// shard into max 3 844 directories
	return filepath.Join(
		l.path,
		name[0:2],
		name)
}
