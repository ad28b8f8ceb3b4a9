// Package lock provides the cross-process guard that keeps a single sync
// cycle running when several instances share one state store.
//
// RedisLocker uses bsm/redislock. Nop is used when no redis address is configured.
package lock
