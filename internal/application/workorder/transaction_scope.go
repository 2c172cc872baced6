package workorder

import (
	"context"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/workorder"
)

// TransactionScope provides transactional access to the work-order
// repositories. When a function is executed within a transaction scope, all
// repository operations are part of the same database transaction and commit
// or roll back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories touched by a
// work-order settlement. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// WorkOrders returns the work order repository scoped to the current transaction
	WorkOrders() workorder.Repository
	// Assets returns the asset ledger repository scoped to the current transaction
	Assets() asset.Repository
	// Claims returns the target claim repository scoped to the current transaction
	Claims() workorder.ClaimRepository
}

// NoOpTransactionScope runs the function without a real transaction. Useful
// for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	workOrders workorder.Repository
	assets     asset.Repository
	claims     workorder.ClaimRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	workOrders workorder.Repository,
	assets asset.Repository,
	claims workorder.ClaimRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		workOrders: workOrders,
		assets:     assets,
		claims:     claims,
	}
}

// Execute runs the function without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// WorkOrders returns the work order repository
func (s *NoOpTransactionScope) WorkOrders() workorder.Repository {
	return s.workOrders
}

// Assets returns the asset ledger repository
func (s *NoOpTransactionScope) Assets() asset.Repository {
	return s.assets
}

// Claims returns the target claim repository
func (s *NoOpTransactionScope) Claims() workorder.ClaimRepository {
	return s.claims
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
