// Package store defines the persistence collaborators used by model-backed
// forms. The form package only needs a Saver; orchestrators additionally
// accept a TxRunner so every save of one submission commits or rolls back
// together. Implementations live in the memory and sqlstore subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilRecord is returned by savers handed a nil record.
var ErrNilRecord = errors.New("store: record is nil")

// Saver persists a record produced by a model-backed form.
type Saver interface {
	Save(ctx context.Context, record any) error
}

// SaverFunc adapts a function into a Saver.
type SaverFunc func(ctx context.Context, record any) error

// Save calls the underlying function.
func (fn SaverFunc) Save(ctx context.Context, record any) error {
	return fn(ctx, record)
}

// TxRunner executes fn inside a single unit of work. Implementations must
// roll back every write made through ctx when fn returns an error.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxFunc adapts a function into a TxRunner.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTx calls the underlying function.
func (fn TxFunc) RunInTx(ctx context.Context, body func(ctx context.Context) error) error {
	return fn(ctx, body)
}

// Identifiable records expose a stable identifier. Stores assign one when
// RecordID returns an empty string.
type Identifiable interface {
	RecordID() string
	SetRecordID(id string)
}

// SaveError reports which form failed to persist.
type SaveError struct {
	Key string
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("store: save %s: %v", e.Key, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
