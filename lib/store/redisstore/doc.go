// Package redisstore implements the store.IStore interface (kind "redis") on
// top of a Redis server using go-redis.
//
// The value and its timestamp entry are written in one MULTI/EXEC transaction,
// so readers never observe a value without its timestamp. Evict deletes both
// keys. The parameters "addr", "db" and "password" select the server, which
// makes a serialized proxy resolvable from any process that can reach it.
package redisstore
