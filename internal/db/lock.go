package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate applies SELECT ... FOR UPDATE to the query so competing
// mutations on the same row are serialized by the database.
//
// sqlite has no row locks and rejects the clause; its single-writer model
// already serializes transactions, so the clause is skipped there.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
