package profiles

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/campusreach/backend/internal/models"
)

// ContactSource is the uncached lookup. *Repository implements it.
type ContactSource interface {
	LookupContact(ctx context.Context, userID uuid.UUID, preferOrg *uuid.UUID) (models.Contact, bool, error)
}

type cachedContact struct {
	contact models.Contact
	found   bool
}

// Directory caches contact lookups for chat enrichment. It holds display data only;
// nothing that grants access is read through it.
type Directory struct {
	source ContactSource
	cache  *cache.Cache
}

// NewDirectory wraps source with a TTL cache. ttl <= 0 disables caching.
func NewDirectory(source ContactSource, ttl time.Duration) *Directory {
	d := &Directory{source: source}
	if ttl > 0 {
		d.cache = cache.New(ttl, 2*ttl)
	}
	return d
}

// LookupContact implements ContactSource.
func (d *Directory) LookupContact(ctx context.Context, userID uuid.UUID, preferOrg *uuid.UUID) (models.Contact, bool, error) {
	key := userID.String()
	if preferOrg != nil {
		key += "/" + preferOrg.String()
	}
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			cc := v.(cachedContact)
			return cc.contact, cc.found, nil
		}
	}
	c, found, err := d.source.LookupContact(ctx, userID, preferOrg)
	if err != nil {
		return c, false, err
	}
	if d.cache != nil {
		d.cache.SetDefault(key, cachedContact{contact: c, found: found})
	}
	return c, found, nil
}

// Forget drops cached entries for a user after a profile change.
func (d *Directory) Forget(userID uuid.UUID) {
	if d == nil || d.cache == nil {
		return
	}
	prefix := userID.String()
	for k := range d.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			d.cache.Delete(k)
		}
	}
}
