// Package db defines the storage-agnostic transaction contract shared by the
// Mongo and Postgres repositories.
package db

import "context"

// TransactionFunc is executed inside a store transaction. Repository calls
// made with the supplied context join that transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}
