package repository

import (
	"context"

	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/uptrace/bun"
)

// CreateSchema creates the users, accounts, sessions and
// blocked_identifiers tables when missing. The unique index on
// (identifier_hash, type) backs the one-row-per-identifier rule.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*softdelete.User)(nil),
		(*softdelete.Account)(nil),
		(*softdelete.Session)(nil),
		(*softdelete.BlockedIdentifier)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	_, err := db.NewCreateIndex().
		Model((*softdelete.BlockedIdentifier)(nil)).
		Index("uq_blocked_identifiers_hash_type").
		Unique().
		IfNotExists().
		Column("identifier_hash", "type").
		Exec(ctx)
	return err
}
