package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate applies a SELECT ... FOR UPDATE row lock. The sqlite dialect used
// in repo tests has no row locks (writers serialize on the database lock), so
// the clause is only emitted for postgres.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return tx
	}
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
