// Package store defines the persistence contracts for crawl state and comic
// records. Implementations live under internal/storage; this package must not
// import database drivers or concrete clients.
package store
