// Package document defines the Document model and the Store contract.
//
// Backends live in subpackages: inmemory for tests, gorm for any gorm
// dialect with the embedding stored as a blob, and pgvector for PostgreSQL
// with a native vector(384) column.
package document
