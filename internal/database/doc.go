// Package database provides PostgreSQL connection pool management for the
// optional postgres cache backend and the snapshot journal.
package database
