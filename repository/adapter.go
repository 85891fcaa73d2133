package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Adapter implements softdelete.Adapter on top of bun.
type Adapter struct {
	db     bun.IDB
	models map[string]reflect.Type
}

var _ softdelete.Adapter = (*Adapter)(nil)

// Option customizes the Adapter.
type Option func(*Adapter)

// WithModel maps a logical model name to a bun model. proto must be a
// pointer to a struct, e.g. (*MyUser)(nil).
func WithModel(name string, proto any) Option {
	return func(a *Adapter) {
		typ := reflect.TypeOf(proto)
		if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
			return
		}
		a.models[name] = typ.Elem()
	}
}

// NewAdapter returns an Adapter for the stock softdelete models. db may be a
// *bun.DB or a bun.Tx.
func NewAdapter(db bun.IDB, opts ...Option) *Adapter {
	a := &Adapter{
		db: db,
		models: map[string]reflect.Type{
			softdelete.ModelUser:              reflect.TypeOf(softdelete.User{}),
			softdelete.ModelAccount:           reflect.TypeOf(softdelete.Account{}),
			softdelete.ModelSession:           reflect.TypeOf(softdelete.Session{}),
			softdelete.ModelBlockedIdentifier: reflect.TypeOf(softdelete.BlockedIdentifier{}),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// FindOne scans the first row matching where into dest.
func (a *Adapter) FindOne(ctx context.Context, model string, where []softdelete.Where, dest any) error {
	typ, err := a.model(model)
	if err != nil {
		return err
	}
	if reflect.TypeOf(dest) != reflect.PointerTo(typ) {
		return goerrors.New(fmt.Sprintf("dest %T does not match model %s", dest, model), goerrors.CategoryInternal)
	}

	q := a.db.NewSelect().Model(dest)
	q = applyWhere(q, where)

	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(model, where)
		}
		return err
	}
	return nil
}

// Update sets values on every row matching where. It fails with
// softdelete.ErrRecordNotFound when no row matched. Drivers that report
// changed rather than matched rows get an existence check, so rewriting a
// row with its current values still succeeds.
func (a *Adapter) Update(ctx context.Context, model string, where []softdelete.Where, values map[string]any) error {
	typ, err := a.model(model)
	if err != nil {
		return err
	}
	if len(where) == 0 {
		return goerrors.New("update requires a where clause", goerrors.CategoryInternal)
	}
	if len(values) == 0 {
		return nil
	}

	q := a.db.NewUpdate().Model(reflect.New(typ).Interface())

	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		q = q.Set("? = ?", bun.Ident(column), normalizeValue(values[column]))
	}
	q = applyWhere(q, where)

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return nil
	}

	exists, err := applyWhere(a.db.NewSelect().Model(reflect.New(typ).Interface()), where).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(model, where)
	}
	return nil
}

// Create inserts record.
func (a *Adapter) Create(ctx context.Context, model string, record any) error {
	typ, err := a.model(model)
	if err != nil {
		return err
	}
	if reflect.TypeOf(record) != reflect.PointerTo(typ) {
		return goerrors.New(fmt.Sprintf("record %T does not match model %s", record, model), goerrors.CategoryInternal)
	}
	_, err = a.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// Delete removes every row matching where. Deleting nothing is not an error.
func (a *Adapter) Delete(ctx context.Context, model string, where []softdelete.Where) error {
	typ, err := a.model(model)
	if err != nil {
		return err
	}
	if len(where) == 0 {
		return goerrors.New("delete requires a where clause", goerrors.CategoryInternal)
	}

	q := a.db.NewDelete().Model(reflect.New(typ).Interface())
	q = applyWhere(q, where)
	_, err = q.Exec(ctx)
	return err
}

func (a *Adapter) model(name string) (reflect.Type, error) {
	typ, ok := a.models[name]
	if !ok {
		return nil, goerrors.New("unknown model "+name, goerrors.CategoryInternal).
			WithMetadata(map[string]any{"model": name})
	}
	return typ, nil
}

type whereQuery[T any] interface {
	Where(query string, args ...any) T
}

func applyWhere[T whereQuery[T]](q T, where []softdelete.Where) T {
	for _, w := range where {
		value := normalizeValue(w.Value)
		if value == nil {
			q = q.Where("? IS NULL", bun.Ident(w.Field))
			continue
		}
		q = q.Where("? = ?", bun.Ident(w.Field), value)
	}
	return q
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case softdelete.UserStatus:
		return string(t)
	}
	return v
}

func notFound(model string, where []softdelete.Where) error {
	fields := make([]string, 0, len(where))
	for _, w := range where {
		fields = append(fields, w.Field)
	}
	return softdelete.ErrRecordNotFound.Clone().WithMetadata(map[string]any{
		"model":  model,
		"fields": fields,
	})
}
