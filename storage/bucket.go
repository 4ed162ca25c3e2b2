package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/balancednetwork/xcall-tracker/logging"
)

// Bucket persists one logical table as a single versioned JSON blob under
// a fixed key. A version bump with no migration wipes the table: Load
// logs a warning and leaves dest untouched instead of attempting a
// field-by-field migration.
type Bucket struct {
	store   Store
	key     string
	version int
	logger  logging.Logger
}

func NewBucket(store Store, key string, version int, logger logging.Logger) *Bucket {
	return &Bucket{
		store:   store,
		key:     key,
		version: version,
		logger:  logger,
	}
}

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func (b *Bucket) Save(ctx context.Context, table interface{}) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("can't marshal table %s: %w", b.key, err)
	}
	blob, err := json.Marshal(&envelope{Version: b.version, Data: data})
	if err != nil {
		return fmt.Errorf("can't marshal envelope %s: %w", b.key, err)
	}
	if err := b.store.Set(ctx, b.key, blob); err != nil {
		return fmt.Errorf("can't persist table %s: %w", b.key, err)
	}
	return nil
}

// Load hydrates dest from the stored blob. Hydration never aborts: a
// missing key, a version mismatch or a corrupt blob all leave dest as-is
// so the service starts from an empty table.
func (b *Bucket) Load(ctx context.Context, dest interface{}) error {
	blob, err := b.store.Get(ctx, b.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't read table %s: %w", b.key, err)
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		b.logger.WithError(err).WithField("key", b.key).Error("corrupt persisted table, starting empty")
		return nil
	}
	if env.Version != b.version {
		b.logger.WithFields(logrus.Fields{
			"key":              b.key,
			"stored_version":   env.Version,
			"expected_version": b.version,
		}).Warn("persisted table version mismatch, wiping")
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		b.logger.WithError(err).WithField("key", b.key).Error("can't decode persisted table, starting empty")
		return nil
	}
	return nil
}
