// Package repository contains the sqlite persistence layer. Methods
// that take a *sql.Tx participate in the caller's transaction; passing
// nil runs them against the pooled connection.
package repository

import "database/sql"

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func conn(db *sql.DB, tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return db
}
