// Package repository defines storage interfaces implemented by concrete backends.
package repository

import "context"

// Transactor runs a unit of work atomically.
type Transactor interface {
	// WithinTx runs fn inside one transaction carried by the ctx passed to fn.
	// Repository calls made with that ctx join the transaction; nested calls reuse it.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
