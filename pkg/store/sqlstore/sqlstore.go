// Package sqlstore persists model-backed form records in PostgreSQL through
// database/sql and lib/pq. Records are upserted by id from their `form`
// tagged fields.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"mime/multipart"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/goliatone/go-multiform/internal/record"
	"github.com/goliatone/go-multiform/pkg/store"
)

// IDColumn is the primary-key column every table must have.
const IDColumn = "id"

// ErrNoColumns is returned for records without persistable fields.
var ErrNoColumns = errors.New("sqlstore: record has no columns")

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides uuid-based record ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store wraps a *sql.DB.
type Store struct {
	db    *sql.DB
	newID func() string
}

var _ store.TxRunner = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

type txKey struct{}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunInTx runs fn inside one database transaction. Savers called with the
// provided ctx write through it; the transaction is rolled back when fn
// fails and committed otherwise. Nested calls reuse the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, nested := ctx.Value(txKey{}).(*sql.Tx); nested {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("sqlstore: rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// Saver returns a store.Saver upserting records into table.
func (s *Store) Saver(table string) store.Saver {
	table = strings.TrimSpace(table)
	return store.SaverFunc(func(ctx context.Context, rec any) error {
		return s.save(ctx, table, rec)
	})
}

func (s *Store) save(ctx context.Context, table string, rec any) error {
	if rec == nil {
		return store.ErrNilRecord
	}
	id := s.ensureID(rec)

	columns, args := columnsOf(rec)
	if len(columns) == 0 {
		return fmt.Errorf("%w: %T", ErrNoColumns, rec)
	}
	if !hasColumn(columns, IDColumn) {
		columns = append([]string{IDColumn}, columns...)
		args = append([]any{id}, args...)
	}

	query := UpsertQuery(table, columns)
	var exec execer = s.db
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		exec = tx
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("sqlstore: upsert %s: %s (%s): %w", table, pqErr.Message, pqErr.Code.Name(), err)
		}
		return fmt.Errorf("sqlstore: upsert %s: %w", table, err)
	}
	return nil
}

func (s *Store) ensureID(rec any) string {
	if ident, ok := rec.(store.Identifiable); ok {
		if id := ident.RecordID(); id != "" {
			return id
		}
		id := s.newID()
		ident.SetRecordID(id)
		return id
	}
	if value, ok := record.Lookup(rec, IDColumn); ok {
		if id := fmt.Sprint(value); id != "" {
			return id
		}
	}
	id := s.newID()
	record.Assign(rec, IDColumn, id)
	return id
}

// UpsertQuery renders the INSERT ... ON CONFLICT statement for columns.
func UpsertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	var updates []string
	for i, column := range columns {
		quoted[i] = pq.QuoteIdentifier(column)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if column != IDColumn {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		pq.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		pq.QuoteIdentifier(IDColumn),
	)
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(updates, ", "))
	}
	return b.String()
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// columnsOf extracts column names and values from a struct or a
// map[string]any. Uploaded files persist their filename; nested structs,
// maps and slices other than []byte are skipped.
func columnsOf(rec any) ([]string, []any) {
	fields := record.Fields(rec)
	columns := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		value, ok := columnValue(field.Value)
		if !ok {
			continue
		}
		columns = append(columns, field.Name)
		args = append(args, value)
	}
	return columns, args
}

func columnValue(v reflect.Value) (any, bool) {
	if v.Type().Implements(valuerType) || v.Type() == timeType {
		return v.Interface(), true
	}
	if header, ok := v.Interface().(*multipart.FileHeader); ok {
		if header == nil {
			return nil, true
		}
		return header.Filename, true
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, true
		}
		return columnValue(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return nil, true
		}
		return columnValue(v.Elem())
	case reflect.Struct, reflect.Map, reflect.Func, reflect.Chan:
		return nil, false
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), true
		}
		return nil, false
	default:
		return v.Interface(), true
	}
}

func hasColumn(columns []string, name string) bool {
	for _, column := range columns {
		if column == name {
			return true
		}
	}
	return false
}
