// Package store defines the persistence interfaces the portal pipeline reads
// and writes through, plus the PostgreSQL implementation and the Redis/LRU
// caching layers. Absence is a typed outcome: lookups return ErrNotFound,
// never a swallowed error.
package store
