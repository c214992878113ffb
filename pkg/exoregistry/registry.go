// Asset registry: allocates collision-free asset IDs and owns the lifecycle
// of per-asset metadata records in the shared store. Every worker runs its own
// Registry instance against the same store, with no other coordination.
package exoregistry

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/function61/exohost/pkg/blobstore"
	"github.com/function61/exohost/pkg/exotypes"
	"github.com/function61/exohost/pkg/ratemeter"
	"github.com/function61/exohost/pkg/registrystore"
	"github.com/function61/gokit/logex"
)

// rate meter names, kept exactly as the /metric consumers know them
const (
	MeterUploads   = "uploadsPerSecond"
	MeterViews     = "viewsPerSecond"
	MeterDownloads = "downloadsPerSecond"
)

type Registry struct {
	store  registrystore.Store
	blobs  blobstore.Driver
	alloc  *idAllocator
	meters *ratemeter.Collection
	logl   *logex.Leveled
}

func New(
	store registrystore.Store,
	blobs blobstore.Driver,
	idLength int,
	meters *ratemeter.Collection,
	logger *log.Logger,
) *Registry {
	return &Registry{
		store:  store,
		blobs:  blobs,
		alloc:  newIDAllocator(store, idLength),
		meters: meters,
		logl:   logex.Levels(logex.NonNil(logger)),
	}
}

// stores the content and creates a fully populated asset record for it.
// write order is load-bearing:
//
//  1. claim ID (sets "date"; record still invisible - readers key off "file")
//  2. blob to the blob store (a metadata record must never point at a blob
//     that was not written)
//  3. counters/size/provenance fields
//  4. "file" last, which is the visibility barrier: any record observable
//     through ResolveFile()/Statistics() is complete
func (r *Registry) Create(
	ctx context.Context,
	content io.Reader,
	originalName string,
	fields exotypes.AssetFields,
) (string, error) {
	id, err := r.alloc.allocate(ctx, time.Now().UnixMilli())
	if err != nil {
		return "", err
	}

	blobName := id + strings.ToLower(filepath.Ext(originalName))

	size, err := r.blobs.Store(ctx, blobName, content)
	if err != nil {
		return "", fmt.Errorf("blob write: %v", err)
	}

	writeField := func(field string, value string) error {
		if err := r.store.HSet(ctx, id, field, value); err != nil {
			// the blob is already persisted and we have no registry entry
			// for it. accepted inconsistency - no compensating delete.
			r.logl.Error.Printf("metadata write for %s: %v (blob %s orphaned)", id, err, blobName)

			return fmt.Errorf("metadata write: %v", err)
		}

		return nil
	}

	if err := writeField(exotypes.FieldViews, "0"); err != nil {
		return "", err
	}
	if err := writeField(exotypes.FieldDownloads, "0"); err != nil {
		return "", err
	}
	if err := writeField(exotypes.FieldScore, "0"); err != nil {
		return "", err
	}
	if err := writeField(exotypes.FieldSize, strconv.FormatInt(size, 10)); err != nil {
		return "", err
	}
	if fields.Title != "" {
		if err := writeField(exotypes.FieldTitle, fields.Title); err != nil {
			return "", err
		}
	}
	if fields.Owner != "" {
		if err := writeField(exotypes.FieldOwner, fields.Owner); err != nil {
			return "", err
		}
	}
	if err := writeField(exotypes.FieldFile, blobName); err != nil {
		return "", err
	}

	r.meters.Mark(MeterUploads)

	return id, nil
}

// resolves an asset ID to its blob name. an ID without a (non-empty) "file"
// field - never created, or creation still in flight - is indistinguishable
// from a fully unknown ID.
func (r *Registry) ResolveFile(ctx context.Context, id string) (string, error) {
	blobName, err := r.store.HGet(ctx, id, exotypes.FieldFile)
	if err != nil {
		if err == registrystore.ErrFieldNotFound {
			return "", exotypes.ErrAssetNotFound
		}

		return "", fmt.Errorf("resolve %s: %v", id, err)
	}

	if blobName == "" {
		return "", exotypes.ErrAssetNotFound
	}

	return blobName, nil
}

// resolves and opens the asset's content for serving. does not touch counters;
// that's the caller's call to make once the response is underway.
func (r *Registry) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	blobName, err := r.ResolveFile(ctx, id)
	if err != nil {
		return nil, "", err
	}

	content, err := r.blobs.Fetch(ctx, blobName)
	if err != nil {
		return nil, "", fmt.Errorf("blob fetch %s: %v", blobName, err)
	}

	return content, blobName, nil
}

func (r *Registry) Statistics(ctx context.Context, id string) (*exotypes.AssetStatistics, error) {
	// existence is defined by "file" - don't report half-created records
	if _, err := r.ResolveFile(ctx, id); err != nil {
		return nil, err
	}

	readInt := func(field string) (int64, error) {
		serialized, err := r.store.HGet(ctx, id, field)
		if err != nil {
			return 0, fmt.Errorf("statistics %s/%s: %v", id, field, err)
		}

		return strconv.ParseInt(serialized, 10, 64)
	}

	stats := &exotypes.AssetStatistics{}

	var err error
	if stats.Views, err = readInt(exotypes.FieldViews); err != nil {
		return nil, err
	}
	if stats.Downloads, err = readInt(exotypes.FieldDownloads); err != nil {
		return nil, err
	}
	if stats.Size, err = readInt(exotypes.FieldSize); err != nil {
		return nil, err
	}
	if stats.Date, err = readInt(exotypes.FieldDate); err != nil {
		return nil, err
	}

	return stats, nil
}
