package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

const keyPrefix = "threadmill:"

// namespaceKey prefixes a key with the service namespace
func (c *Cache) namespaceKey(key string) string {
	return keyPrefix + key
}

// HashKey builds a stable cache key from arbitrary parts. MD5 keeps keys
// short regardless of how long the joined parts get.
func HashKey(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// ThreadKey is the cache key for a thread's reply tree
func ThreadKey(threadID int64) string {
	return "thread:" + strconv.FormatInt(threadID, 10) + ":tree"
}
