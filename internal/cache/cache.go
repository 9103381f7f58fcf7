// Package cache keeps a local snapshot of upstream templates in
// BoltDB, one bucket per app. The console serves listings from it when
// the upstream is unreachable; it is never the source of truth.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/maildeck/maildeck/internal/metrics"
	"github.com/maildeck/maildeck/internal/model"
)

var bucketApps = []byte("apps")

// Cache is the per-app template snapshot store.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache file.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketApps)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache buckets: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func appBucket(tx *bolt.Tx, appID string, create bool) (*bolt.Bucket, error) {
	apps := tx.Bucket(bucketApps)
	if create {
		return apps.CreateBucketIfNotExists([]byte(appID))
	}
	b := apps.Bucket([]byte(appID))
	return b, nil
}

// StoreList replaces an app's snapshot with a fresh listing.
func (c *Cache) StoreList(appID string, templates []model.Template) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		apps := tx.Bucket(bucketApps)
		// Drop the old bucket so deletions upstream are reflected.
		if err := apps.DeleteBucket([]byte(appID)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := apps.CreateBucket([]byte(appID))
		if err != nil {
			return err
		}
		for i := range templates {
			data, err := json.Marshal(templates[i])
			if err != nil {
				return fmt.Errorf("failed to marshal template: %w", err)
			}
			if err := b.Put([]byte(templates[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// StoreOne upserts a single template into an app's snapshot.
func (c *Cache) StoreOne(appID string, tmpl model.Template) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := appBucket(tx, appID, true)
		if err != nil {
			return err
		}
		data, err := json.Marshal(tmpl)
		if err != nil {
			return fmt.Errorf("failed to marshal template: %w", err)
		}
		return b.Put([]byte(tmpl.ID), data)
	})
}

// Get retrieves one cached template. Returns nil without error when the
// template is not cached.
func (c *Cache) Get(appID, id string) (*model.Template, error) {
	var tmpl *model.Template

	err := c.db.View(func(tx *bolt.Tx) error {
		b, err := appBucket(tx, appID, false)
		if err != nil || b == nil {
			return err
		}
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		tmpl = &model.Template{}
		return json.Unmarshal(data, tmpl)
	})
	if err != nil {
		return nil, err
	}

	if tmpl == nil {
		metrics.IncCacheMiss()
	} else {
		metrics.IncCacheHit()
	}
	return tmpl, nil
}

// List returns an app's snapshot sorted by name.
func (c *Cache) List(appID string) ([]model.Template, error) {
	var templates []model.Template

	err := c.db.View(func(tx *bolt.Tx) error {
		b, err := appBucket(tx, appID, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(_, data []byte) error {
			var t model.Template
			if err := json.Unmarshal(data, &t); err != nil {
				return err
			}
			templates = append(templates, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates, nil
}

// Delete removes one template from an app's snapshot.
func (c *Cache) Delete(appID, id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := appBucket(tx, appID, false)
		if err != nil || b == nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}
