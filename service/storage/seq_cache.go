package storage

import (
	"context"
	"strconv"
	"time"

	"SeqChat/logger"
	"SeqChat/module/chat/order"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// forward-only watermark write: KEYS[1]=key; ARGV[1]=seq; ARGV[2]=ttlMs
var luaRememberSeq = redis.NewScript(`
  local cur = redis.call('GET', KEYS[1])
  if cur and tonumber(cur) >= tonumber(ARGV[1]) then
    return 0
  end
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
`)

// CachedSeqStore answers the cold-start reconciler from Redis when it can
// and falls through to the Mongo DAO when it can't. Cache misses and cache
// failures are both just "ask Mongo"; the engine never sees them.
type CachedSeqStore struct {
	rdb  *redis.Client
	next order.SeqStore
	ttl  time.Duration
}

// NewCachedSeqStore wraps next with a Redis watermark cache. rdb may be
// nil, which disables the cache entirely.
func NewCachedSeqStore(rdb *redis.Client, next order.SeqStore, ttl time.Duration) *CachedSeqStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedSeqStore{rdb: rdb, next: next, ttl: ttl}
}

func seqKey(conversationID, senderID string) string {
	return "seq:last:" + conversationID + ":" + senderID
}

func (s *CachedSeqStore) LastSequence(ctx context.Context, conversationID, senderID string, below int64) (int64, bool, error) {
	if s.rdb != nil {
		v, err := s.rdb.Get(ctx, seqKey(conversationID, senderID)).Result()
		if err == nil {
			// a watermark at or above the observed seq can hide forced-gap
			// holes; only Mongo knows the exact row below it
			if n, perr := strconv.ParseInt(v, 10, 64); perr == nil && n >= 1 && n < below {
				return n, true, nil
			}
		} else if err != redis.Nil {
			logger.Warn("seq cache read failed, falling through to store",
				zap.String("conversation_id", conversationID),
				zap.String("sender_id", senderID),
				zap.Error(err))
		}
	}
	if s.next == nil {
		return 0, false, nil
	}
	return s.next.LastSequence(ctx, conversationID, senderID, below)
}

// Remember records a delivered sequence so the next cold start skips the
// Mongo round trip. Best effort; the durable watermark lives in Mongo.
func (s *CachedSeqStore) Remember(ctx context.Context, conversationID, senderID string, seq int64) {
	if s.rdb == nil || seq < 1 {
		return
	}
	key := seqKey(conversationID, senderID)
	if err := luaRememberSeq.Run(ctx, s.rdb, []string{key}, seq, s.ttl.Milliseconds()).Err(); err != nil {
		logger.Warn("seq cache write failed",
			zap.String("key", key),
			zap.Int64("seq", seq),
			zap.Error(err))
	}
}
