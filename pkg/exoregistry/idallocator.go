package exoregistry

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/function61/exohost/pkg/exotypes"
	"github.com/function61/exohost/pkg/registrystore"
)

// 62 symbols; at the default length of 10 the ID space is 62^10 (~8 * 10^17)
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// hands out asset IDs that are guaranteed claimed for the caller. the claim is
// a single HSETNX on the record's "date" field, so two workers drawing the
// same ID (astronomically unlikely, but every worker is a peer with no
// coordination channel besides the store) can never both win - the loser just
// draws again. this also sets "date" exactly once, at creation.
type idAllocator struct {
	store  registrystore.Store
	length int
	rand   *rand.Rand // non-cryptographic; IDs are opaque, not secret
}

func newIDAllocator(store registrystore.Store, length int) *idAllocator {
	return &idAllocator{
		store:  store,
		length: length,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// returns an ID whose record now carries the given creation timestamp.
// a store error aborts allocation - we never hand out an unconfirmed ID.
func (a *idAllocator) allocate(ctx context.Context, nowMillis int64) (string, error) {
	for {
		id := a.draw()

		claimed, err := a.store.HSetNX(ctx, id, exotypes.FieldDate, strconv.FormatInt(nowMillis, 10))
		if err != nil {
			return "", fmt.Errorf("id allocation: %v", err)
		}

		if claimed {
			return id, nil
		}
	}
}

func (a *idAllocator) draw() string {
	id := make([]byte, a.length)
	for i := range id {
		id[i] = idAlphabet[a.rand.Intn(len(idAlphabet))]
	}

	return string(id)
}
