package softdelete

import (
	"context"
	"time"
)

const secondaryNeverExpires = "never"

// blockList owns BlockedIdentifier rows and their optional secondary mirror.
type blockList struct {
	adapter    Adapter
	secondary  SecondaryStorage
	generateID IDGenerator
	logger     Logger
}

func (b blockList) find(ctx context.Context, hash, identifierType string) (*BlockedIdentifier, error) {
	row := &BlockedIdentifier{}
	err := b.adapter.FindOne(ctx, ModelBlockedIdentifier, []Where{
		Eq(FieldIdentifierHash, hash),
		Eq(FieldType, identifierType),
	}, row)
	if IsRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapInternal(err, "find blocked identifier")
	}
	return row, nil
}

// Block upserts the block for email so at most one row exists per
// (hash, type). An existing row, expired or not, has its expiry refreshed.
func (b blockList) Block(ctx context.Context, email string, now, expiresAt time.Time) (*BlockedIdentifier, error) {
	hash := HashIdentifier(email)

	row, err := b.find(ctx, hash, IdentifierTypeEmail)
	if err != nil {
		return nil, err
	}

	if row != nil {
		if err := b.extend(ctx, row, expiresAt); err != nil {
			return nil, err
		}
	} else {
		row = &BlockedIdentifier{
			ID:             b.newID(hash),
			IdentifierHash: hash,
			Type:           IdentifierTypeEmail,
			ExpiresAt:      &expiresAt,
			CreatedAt:      now,
		}
		if err := b.adapter.Create(ctx, ModelBlockedIdentifier, row); err != nil {
			// a concurrent delete may have inserted the row first
			existing, findErr := b.find(ctx, hash, IdentifierTypeEmail)
			if findErr != nil || existing == nil {
				return nil, wrapInternal(err, "create blocked identifier")
			}
			b.logger.Debug("blocked identifier already exists, refreshing expiry id=%s", existing.ID)
			if err := b.extend(ctx, existing, expiresAt); err != nil {
				return nil, err
			}
			row = existing
		}
	}

	b.mirror(ctx, row, now)
	return row, nil
}

func (b blockList) extend(ctx context.Context, row *BlockedIdentifier, expiresAt time.Time) error {
	err := b.adapter.Update(ctx, ModelBlockedIdentifier, []Where{Eq(FieldID, row.ID)}, map[string]any{
		FieldExpiresAt: expiresAt,
	})
	if err != nil {
		return wrapInternal(err, "extend blocked identifier")
	}
	row.ExpiresAt = &expiresAt
	return nil
}

// Active returns the live block for email at now, or nil. The durable row
// decides. A secondary hit only answers when the durable lookup fails, and a
// secondary entry without a row is dropped. Expired rows are ignored and
// left in place for external housekeeping.
func (b blockList) Active(ctx context.Context, email string, now time.Time) (*BlockedIdentifier, error) {
	hash := HashIdentifier(email)
	cachedExpiry, cached := b.lookupSecondary(ctx, hash, now)

	row, err := b.find(ctx, hash, IdentifierTypeEmail)
	if err != nil {
		if !cached {
			return nil, err
		}
		b.logger.Warn("blocked identifier lookup failed, using secondary storage: %v", err)
		return &BlockedIdentifier{
			IdentifierHash: hash,
			Type:           IdentifierTypeEmail,
			ExpiresAt:      cachedExpiry,
		}, nil
	}

	if row == nil {
		if cached {
			b.forget(ctx, hash)
		}
		return nil, nil
	}
	if row.IsExpired(now) {
		return nil, nil
	}
	return row, nil
}

// Release removes the block for email from both stores.
func (b blockList) Release(ctx context.Context, email string) error {
	hash := HashIdentifier(email)

	b.forget(ctx, hash)

	err := b.adapter.Delete(ctx, ModelBlockedIdentifier, []Where{
		Eq(FieldIdentifierHash, hash),
		Eq(FieldType, IdentifierTypeEmail),
	})
	if err != nil && !IsRecordNotFound(err) {
		return wrapInternal(err, "delete blocked identifier")
	}
	return nil
}

// forget drops the secondary entry for hash. A failure leaves a stale entry
// that Active ignores once the durable row is gone.
func (b blockList) forget(ctx context.Context, hash string) {
	if b.secondary == nil {
		return
	}
	if err := b.secondary.Delete(ctx, SecondaryKey(IdentifierTypeEmail, hash)); err != nil {
		b.logger.Warn("secondary storage delete failed: %v", err)
	}
}

func (b blockList) newID(hash string) string {
	if b.generateID != nil {
		if id := b.generateID(ModelBlockedIdentifier); id != "" {
			return id
		}
	}
	return blockedIdentifierID(IdentifierTypeEmail, hash)
}

// mirror writes the block to secondary storage. Failures only degrade the
// fast path, so they are logged.
func (b blockList) mirror(ctx context.Context, row *BlockedIdentifier, now time.Time) {
	if b.secondary == nil || row == nil {
		return
	}

	value := secondaryNeverExpires
	var ttl time.Duration
	if row.ExpiresAt != nil {
		ttl = row.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return
		}
		value = row.ExpiresAt.UTC().Format(time.RFC3339)
	}

	if err := b.secondary.Set(ctx, SecondaryKey(row.Type, row.IdentifierHash), value, ttl); err != nil {
		b.logger.Warn("secondary storage set failed: %v", err)
	}
}

// lookupSecondary reports a live block found in secondary storage. A miss,
// an error or a stale value reports false.
func (b blockList) lookupSecondary(ctx context.Context, hash string, now time.Time) (*time.Time, bool) {
	if b.secondary == nil {
		return nil, false
	}

	value, ok, err := b.secondary.Get(ctx, SecondaryKey(IdentifierTypeEmail, hash))
	if err != nil {
		b.logger.Warn("secondary storage get failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if value == secondaryNeverExpires {
		return nil, true
	}

	expiresAt, err := time.Parse(time.RFC3339, value)
	if err != nil || !expiresAt.After(now) {
		return nil, false
	}
	return &expiresAt, true
}
