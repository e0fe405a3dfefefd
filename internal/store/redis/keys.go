package redis

import "fmt"

const (
	// KeyPrefix namespaces every key written by the guide service.
	KeyPrefix = "guide:kv:"
)

// DurableKey returns the Redis key for a store key.
func DurableKey(key string) string {
	return KeyPrefix + key
}

// ExtractKey strips KeyPrefix from a Redis key.
func ExtractKey(redisKey string) (string, error) {
	if len(redisKey) <= len(KeyPrefix) || redisKey[:len(KeyPrefix)] != KeyPrefix {
		return "", fmt.Errorf("invalid guide key: %s", redisKey)
	}
	return redisKey[len(KeyPrefix):], nil
}
