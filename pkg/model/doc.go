// Package model defines the core portal entities: companies, users, groups,
// layouts and layout sets, plus the parsed type-settings property bag they
// share. Entities are plain data; lifecycle and lookups live in pkg/store.
package model
