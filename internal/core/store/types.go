// Package store provides the store type constants.
package store

// Type represents the type of conversation store.
type Type string

const (
	// TypeMemory represents the in-process store.
	TypeMemory Type = "memory"
	// TypeRedis represents a Redis-backed store.
	TypeRedis Type = "redis"
	// TypeMongoDB represents a MongoDB-backed store.
	TypeMongoDB Type = "mongodb"
)
