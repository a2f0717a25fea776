package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

func buildKey(method, path, idemKey string) string {
	return "idemp:loans:" + strings.ToLower(method) + ":" + path + ":" + idemKey
}

var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-8][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

// validKey accepts a UUID or 32-char hex, case-insensitively.
func validKey(k string) bool {
	k = strings.ToLower(strings.TrimSpace(k))
	return reUUID.MatchString(k) || reHex32.MatchString(k)
}

// ---- Redis helpers ----
func provisionalSet(ctx context.Context, rdb redis.Cmdable, key string, entry idempEntry) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

func loadEntry(ctx context.Context, rdb redis.Cmdable, key string) (idempEntry, error) {
	var e idempEntry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(v, &e)
	return e, err
}

func saveFinal(ctx context.Context, rdb redis.Cmdable, key string, entry idempEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, payload, ttl).Err()
}
