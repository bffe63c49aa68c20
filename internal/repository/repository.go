package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"societyhub/internal/clock"
	"societyhub/internal/errors"
	"societyhub/internal/feed"
	"societyhub/internal/logger"
	"societyhub/internal/model"
)

// Patch is a column to value map applied by Update.
type Patch map[string]any

// Cond is a raw SQL condition with bound arguments.
type Cond struct {
	Expr string
	Args []any
}

// Where builds a Cond.
func Where(expr string, args ...any) Cond {
	return Cond{Expr: expr, Args: args}
}

// Query scopes reads of one collection. Filter entries are equality matches
// (a nil value matches NULL); Where entries are ANDed raw conditions.
type Query struct {
	Filter map[string]any
	Where  []Cond
	Order  string
	Limit  int
}

// Repository gives typed access to one collection.
type Repository[T any] interface {
	// Kind returns the collection name.
	Kind() string
	Create(ctx context.Context, doc *T) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	// Update applies patch as one write and returns the resulting document.
	// The write is last-write-wins; no version check is made.
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*T, error)
	// UpdateWhen applies patch only while the stored row still matches
	// expect; otherwise it returns a ConflictError.
	UpdateWhen(ctx context.Context, id uuid.UUID, expect map[string]any, patch Patch) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Query streams matching rows. The sequence is finite and holds a database
	// cursor until iteration stops; iterate again to re-query.
	Query(ctx context.Context, q Query) iter.Seq2[*T, error]
	List(ctx context.Context, q Query) ([]*T, error)
	// Subscribe delivers the full result set of q now and after every change
	// to the collection, until the returned handle is closed or ctx ends.
	Subscribe(ctx context.Context, q Query) (*Subscription[T], error)
}

type docPtr[T any] interface {
	*T
	model.Document
}

// Option customizes a repository.
type Option func(*options)

type options struct {
	table     string
	immutable []string
}

// WithTable overrides the collection name taken from the document type.
func WithTable(name string) Option {
	return func(o *options) { o.table = name }
}

// WithImmutable adds columns Update must refuse to change.
func WithImmutable(cols ...string) Option {
	return func(o *options) { o.immutable = append(o.immutable, cols...) }
}

type gormRepository[T any, PT docPtr[T]] struct {
	db        *gorm.DB
	table     string
	immutable map[string]struct{}
	feed      feed.Feed
	clock     clock.Clock
	log       *logger.Logger
}

// New creates a GORM-backed repository for documents of type T.
func New[T any, PT docPtr[T]](db *gorm.DB, f feed.Feed, clk clock.Clock, log *logger.Logger, opts ...Option) Repository[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == "" {
		o.table = PT(new(T)).TableName()
	}
	immutable := map[string]struct{}{"id": {}, "owner_id": {}, "created_at": {}}
	for _, c := range o.immutable {
		immutable[c] = struct{}{}
	}
	return &gormRepository[T, PT]{
		db:        db,
		table:     o.table,
		immutable: immutable,
		feed:      f,
		clock:     clk,
		log:       log.With("repository", o.table),
	}
}

func (r *gormRepository[T, PT]) Kind() string { return r.table }

func (r *gormRepository[T, PT]) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

// Create validates doc, assigns its id and creation time, and stores it.
func (r *gormRepository[T, PT]) Create(ctx context.Context, doc *T) (uuid.UUID, error) {
	p := PT(doc)
	p.Stamp(uuid.Nil, r.clock.Now().UTC())
	if err := p.Validate(); err != nil {
		return uuid.Nil, err
	}
	if err := r.scoped(ctx).Create(doc).Error; err != nil {
		return uuid.Nil, r.translate("create", p.DocumentID(), err)
	}
	r.publish(ctx, p.DocumentID(), feed.OpCreate)
	return p.DocumentID(), nil
}

// Get finds a document by id.
func (r *gormRepository[T, PT]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var doc T
	if err := r.scoped(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, r.translate("get", id, err)
	}
	return &doc, nil
}

// Update applies patch inside a transaction and re-validates the stored
// document; an invalid result is rolled back.
func (r *gormRepository[T, PT]) Update(ctx context.Context, id uuid.UUID, patch Patch) (*T, error) {
	return r.UpdateWhen(ctx, id, nil, patch)
}

// UpdateWhen is Update guarded by expect, which is matched in the UPDATE's
// WHERE clause. A row that exists but no longer matches yields a
// ConflictError and is left untouched.
func (r *gormRepository[T, PT]) UpdateWhen(ctx context.Context, id uuid.UUID, expect map[string]any, patch Patch) (*T, error) {
	if len(patch) == 0 {
		return nil, errors.NewValidationError(errors.FieldError{Field: "patch", Message: "is empty"})
	}
	values, err := r.columns(patch, true)
	if err != nil {
		return nil, err
	}
	where, err := r.columns(expect, false)
	if err != nil {
		return nil, err
	}

	var updated T
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current T
		if err := tx.Table(r.table).Where("id = ?", id).First(&current).Error; err != nil {
			return err
		}
		q := tx.Table(r.table).Model(new(T)).Where("id = ?", id)
		if len(where) > 0 {
			q = q.Where(where)
		}
		res := q.Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if len(where) > 0 && res.RowsAffected == 0 {
			return &errors.ConflictError{Kind: r.table, ID: id.String(), Reason: "precondition no longer holds"}
		}
		if err := tx.Table(r.table).Where("id = ?", id).First(&updated).Error; err != nil {
			return err
		}
		return PT(&updated).Validate()
	})
	if err != nil {
		return nil, r.translate("update", id, err)
	}
	r.publish(ctx, id, feed.OpUpdate)
	return &updated, nil
}

// columns resolves every key of m through the document schema, so Go field
// names and column names are treated alike. Unknown keys are refused, and so
// are immutable columns when guard is set.
func (r *gormRepository[T, PT]) columns(m map[string]any, guard bool) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", r.table, err)
	}
	out := make(map[string]any, len(m))
	verr := &errors.ValidationError{}
	for key, v := range m {
		f := stmt.Schema.LookUpField(key)
		if f == nil || f.DBName == "" {
			verr.Add(key, "is not a column of "+r.table)
			continue
		}
		if _, ok := r.immutable[f.DBName]; ok && guard {
			verr.Add(f.DBName, "cannot be modified")
			continue
		}
		out[f.DBName] = v
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a document.
func (r *gormRepository[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.scoped(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return r.translate("delete", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &errors.NotFoundError{Kind: r.table, ID: id.String()}
	}
	r.publish(ctx, id, feed.OpDelete)
	return nil
}

func (r *gormRepository[T, PT]) apply(ctx context.Context, q Query) *gorm.DB {
	tx := r.scoped(ctx)
	if len(q.Filter) > 0 {
		tx = tx.Where(q.Filter)
	}
	for _, c := range q.Where {
		tx = tx.Where(c.Expr, c.Args...)
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

func (r *gormRepository[T, PT]) Query(ctx context.Context, q Query) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		tx := r.apply(ctx, q)
		rows, err := tx.Rows()
		if err != nil {
			yield(nil, r.translate("query", uuid.Nil, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var doc T
			if err := tx.ScanRows(rows, &doc); err != nil {
				yield(nil, r.translate("query", uuid.Nil, err))
				return
			}
			if !yield(&doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, r.translate("query", uuid.Nil, err))
		}
	}
}

func (r *gormRepository[T, PT]) List(ctx context.Context, q Query) ([]*T, error) {
	var out []*T
	for doc, err := range r.Query(ctx, q) {
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *gormRepository[T, PT]) Subscribe(ctx context.Context, q Query) (*Subscription[T], error) {
	listener, err := r.feed.Subscribe(ctx, r.table)
	if err != nil {
		return nil, errors.StoreUnavailable(r.table+".subscribe", err)
	}
	return startSubscription(ctx, listener, func(ctx context.Context) ([]*T, error) {
		return r.List(ctx, q)
	}, r.log), nil
}

func (r *gormRepository[T, PT]) publish(ctx context.Context, id uuid.UUID, op feed.Op) {
	ev := feed.Event{Collection: r.table, ID: id.String(), Op: op, At: r.clock.Now().UTC()}
	// the write is committed; a lost event only delays subscribers until the next change
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.feed.Publish(pubCtx, ev); err != nil {
		r.log.Warn("publish change event failed", "id", id, "op", op, "error", err)
	}
}

func (r *gormRepository[T, PT]) translate(op string, id uuid.UUID, err error) error {
	var (
		verr *errors.ValidationError
		nf   *errors.NotFoundError
		cf   *errors.ConflictError
	)
	switch {
	case stderrors.As(err, &verr), stderrors.As(err, &nf), stderrors.As(err, &cf):
		return err
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return &errors.NotFoundError{Kind: r.table, ID: id.String()}
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return &errors.ConflictError{Kind: r.table, ID: id.String(), Reason: "duplicate key"}
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.StoreUnavailable(r.table+"."+op, err)
	}
}
