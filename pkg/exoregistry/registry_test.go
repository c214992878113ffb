package exoregistry

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/function61/exohost/pkg/blobstore/localfsblobstore"
	"github.com/function61/exohost/pkg/exotypes"
	"github.com/function61/exohost/pkg/ratemeter"
	"github.com/function61/exohost/pkg/registrystore"
	"github.com/function61/exohost/pkg/registrystore/memregistrystore"
	"github.com/function61/gokit/assert"
)

func newTestRegistry(t *testing.T) (*Registry, registrystore.Store) {
	store := memregistrystore.New()

	return New(
		store,
		localfsblobstore.New(t.TempDir(), nil),
		10,
		ratemeter.NewCollection("test"),
		nil), store
}

func TestCreateAndStatistics(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	content := bytes.Repeat([]byte{0x42}, 1024)

	id, err := registry.Create(ctx, bytes.NewReader(content), "cat.png", exotypes.AssetFields{
		Title: "Cat",
		Owner: "CaptainMack",
	})
	assert.Ok(t, err)
	assert.Assert(t, len(id) == 10)

	stats, err := registry.Statistics(ctx, id)
	assert.Ok(t, err)
	assert.Assert(t, stats.Views == 0)
	assert.Assert(t, stats.Downloads == 0)
	assert.Assert(t, stats.Size == 1024)
	assert.Assert(t, stats.Date > 0)
}

func TestBlobNameCarriesLowercasedExtension(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, strings.NewReader("x"), "HOLIDAY.JPG", exotypes.AssetFields{})
	assert.Ok(t, err)

	blobName, err := registry.ResolveFile(ctx, id)
	assert.Ok(t, err)
	assert.EqualString(t, blobName, id+".jpg")
}

func TestCountersAreMonotonic(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, strings.NewReader("x"), "cat.png", exotypes.AssetFields{})
	assert.Ok(t, err)

	registry.RecordView(ctx, id)
	registry.RecordView(ctx, id)
	registry.RecordView(ctx, id)
	registry.RecordDownload(ctx, id)

	stats, err := registry.Statistics(ctx, id)
	assert.Ok(t, err)
	assert.Assert(t, stats.Views == 3)
	assert.Assert(t, stats.Downloads == 1)
}

func TestSizeAndDateNeverChange(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, strings.NewReader("hello"), "cat.png", exotypes.AssetFields{})
	assert.Ok(t, err)

	first, err := registry.Statistics(ctx, id)
	assert.Ok(t, err)

	registry.RecordView(ctx, id)
	registry.RecordDownload(ctx, id)

	second, err := registry.Statistics(ctx, id)
	assert.Ok(t, err)
	assert.Assert(t, second.Size == first.Size)
	assert.Assert(t, second.Date == first.Date)
}

func TestUnknownIdIsNotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.ResolveFile(ctx, "doesnotexist")
	assert.Assert(t, err == exotypes.ErrAssetNotFound)

	_, err = registry.Statistics(ctx, "doesnotexist")
	assert.Assert(t, err == exotypes.ErrAssetNotFound)

	_, _, err = registry.Open(ctx, "doesnotexist")
	assert.Assert(t, err == exotypes.ErrAssetNotFound)
}

func TestHalfCreatedRecordIsInvisible(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	// simulate a creation whose worker died right after the ID claim: "date"
	// is set but "file" never arrived
	claimed, err := store.HSetNX(ctx, "AbCdEfGhIj", exotypes.FieldDate, "1234567890")
	assert.Ok(t, err)
	assert.Assert(t, claimed)

	_, err = registry.ResolveFile(ctx, "AbCdEfGhIj")
	assert.Assert(t, err == exotypes.ErrAssetNotFound)

	_, err = registry.Statistics(ctx, "AbCdEfGhIj")
	assert.Assert(t, err == exotypes.ErrAssetNotFound)
}

func TestOpenReadsBackContent(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, strings.NewReader("file content here"), "note.txt", exotypes.AssetFields{})
	assert.Ok(t, err)

	content, blobName, err := registry.Open(ctx, id)
	assert.Ok(t, err)
	defer content.Close()

	assert.EqualString(t, blobName, id+".txt")

	buf := &bytes.Buffer{}
	_, err = buf.ReadFrom(content)
	assert.Ok(t, err)
	assert.EqualString(t, buf.String(), "file content here")
}

func TestConcurrentCreatesYieldDistinctCompleteRecords(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	const n = 16

	type outcome struct {
		id  string
		err error
	}

	outcomes := make(chan outcome, n)

	wg := sync.WaitGroup{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			id, err := registry.Create(
				ctx,
				strings.NewReader(fmt.Sprintf("content %d", i)),
				"cat.png",
				exotypes.AssetFields{})

			outcomes <- outcome{id, err}
		}(i)
	}
	wg.Wait()
	close(outcomes)

	seen := map[string]bool{}
	for out := range outcomes {
		assert.Ok(t, out.err)
		id := out.id
		assert.Assert(t, !seen[id])
		seen[id] = true

		// any visible record must be fully populated
		stats, err := registry.Statistics(ctx, id)
		assert.Ok(t, err)
		assert.Assert(t, stats.Size > 0)
		assert.Assert(t, stats.Date > 0)
	}

	assert.Assert(t, len(seen) == n)
}
