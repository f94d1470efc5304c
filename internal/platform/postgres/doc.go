// Package postgres provides the PostgreSQL implementation of the data
// storage interfaces defined in the internal/store package. It handles
// query execution, error mapping onto the store sentinels, and data
// mapping between domain entities and database records.
package postgres
