// Package database provides the PostgreSQL connection pool used for
// connection history records and user lookups.
package database
