package repository

import "context"

// TxManager runs fn as one atomic unit: every repository call made with the ctx
// passed to fn commits together, or none does when fn returns an error.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
