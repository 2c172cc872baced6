package persistence

import (
	"context"

	appwo "github.com/dcasset/backend/internal/application/workorder"
	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/workorder"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appwo.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// WorkOrders returns the work order repository scoped to the current transaction.
func (r *gormTransactionalRepositories) WorkOrders() workorder.Repository {
	return NewGormWorkOrderRepository(r.tx)
}

// Assets returns the asset ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Assets() asset.Repository {
	return NewGormAssetRepository(r.tx)
}

// Claims returns the target claim repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Claims() workorder.ClaimRepository {
	return NewGormClaimRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appwo.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appwo.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
