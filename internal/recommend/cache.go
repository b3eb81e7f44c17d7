package recommend

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// vectorCache holds brand vectors keyed by a digest of the snapshot fields
// the vectorizer reads. Cached maps are shared between callers and must not
// be mutated.
type vectorCache struct {
	store *ristretto.Cache[uint64, map[string]BrandVector]
}

// newVectorCache creates a cache holding up to entries snapshots
func newVectorCache(entries int64) (*vectorCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[uint64, map[string]BrandVector]{
		NumCounters:        entries * 10,
		MaxCost:            entries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector cache: %w", err)
	}
	return &vectorCache{store: store}, nil
}

func (c *vectorCache) get(key uint64) (map[string]BrandVector, bool) {
	return c.store.Get(key)
}

func (c *vectorCache) set(key uint64, vectors map[string]BrandVector) {
	c.store.Set(key, vectors, 1)
	c.store.Wait()
}

func (c *vectorCache) close() {
	c.store.Close()
}

// snapshotDigest hashes user IDs, order owners and lines, and product brands.
// Display attributes are left out since they do not change the vectors.
// Each field is length-prefixed so no string can spill into the next one.
func snapshotDigest(snap *models.Snapshot) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 9)
	write := func(tag byte, s string) {
		buf = binary.LittleEndian.AppendUint64(append(buf[:0], tag), uint64(len(s)))
		_, _ = d.Write(buf)
		_, _ = d.WriteString(s)
	}

	for _, u := range snap.Users {
		write('u', u.ID)
	}
	for _, p := range snap.Products {
		write('p', p.ID)
		write('b', p.BrandID)
	}
	for _, o := range snap.Orders {
		write('o', o.UserID)
		for _, item := range o.Items {
			write('i', item.ProductID)
		}
	}
	return d.Sum64()
}
