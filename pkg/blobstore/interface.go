// Interface for writing blob store adapters to exohost
package blobstore

import (
	"context"
	"io"
)

type Driver interface {
	// write must be atomic: Fetch() must not observe a partially written
	// blob. returns the byte length of the stored content.
	Store(ctx context.Context, name string, content io.Reader) (int64, error)

	// if blob is not found, error must report os.IsNotExist(err) == true
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)

	// sanity check at startup that the backing location is usable
	Mountable(ctx context.Context) error
}
