package localfsblobstore

import (
	"context"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestStoreAndFetch(t *testing.T) {
	driver := New(t.TempDir(), nil)
	ctx := context.Background()

	size, err := driver.Store(ctx, "AbCdEfGhIj.png", strings.NewReader("hello world"))
	assert.Ok(t, err)
	assert.Assert(t, size == 11)

	content, err := driver.Fetch(ctx, "AbCdEfGhIj.png")
	assert.Ok(t, err)
	defer content.Close()

	buf, err := ioutil.ReadAll(content)
	assert.Ok(t, err)
	assert.EqualString(t, string(buf), "hello world")
}

func TestStoreRefusesOverwrite(t *testing.T) {
	driver := New(t.TempDir(), nil)
	ctx := context.Background()

	_, err := driver.Store(ctx, "AbCdEfGhIj.png", strings.NewReader("first"))
	assert.Ok(t, err)

	_, err = driver.Store(ctx, "AbCdEfGhIj.png", strings.NewReader("second"))
	assert.Assert(t, err != nil)
}

func TestFetchMissing(t *testing.T) {
	driver := New(t.TempDir(), nil)

	_, err := driver.Fetch(context.Background(), "ZzZzZzZzZz.png")
	assert.Assert(t, os.IsNotExist(err))
}

func TestPath(t *testing.T) {
	driver := New("/tmp/uploads", nil)

	assert.EqualString(t, driver.getPath("AbCdEfGhIj.png"), "/tmp/uploads/Ab/AbCdEfGhIj.png")
}

func TestMountable(t *testing.T) {
	driver := New(t.TempDir(), nil)

	assert.Ok(t, driver.Mountable(context.Background()))
}
