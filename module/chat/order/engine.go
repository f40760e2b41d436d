// Package order implements causal, gapless delivery ordering for messages
// sent by one sender into one conversation. The transport underneath may
// reorder, delay or duplicate deliveries; this engine buffers early
// arrivals, drops stale ones, and bounds both latency (gap timer) and
// memory (buffer cap, idle reaper).
//
// Ordering is scoped strictly per (conversation, sender). Two senders in
// the same conversation never share state. Messages without a sequence
// number bypass the engine entirely.
package order

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"SeqChat/logger"
	"SeqChat/module/chat/model"
	"SeqChat/tools/safe"

	"go.uber.org/zap"
)

// SeqStore is the durable watermark lookup consulted exactly once per
// tracker lifetime, on cold start. It returns the highest committed
// sequence below the observed one, or ok=false when the sender has no
// committed history.
type SeqStore interface {
	LastSequence(ctx context.Context, conversationID, senderID string, below int64) (seq int64, ok bool, err error)
}

// Sink receives batches flushed outside a Submit call, i.e. by the gap
// timer. Batches handed to a Sink are sorted ascending by sequence.
type Sink func(conversationID, senderID string, batch []*model.Message)

// Config carries the engine knobs. Zero values mean defaults.
type Config struct {
	GapTimeout        time.Duration // force-delivery deadline after the first buffered message (default 5s)
	MaxBufferSize     int           // buffered messages per sender before forced flush (default 100)
	InactivityTimeout time.Duration // tracker eviction threshold (default 1h)
	SweepInterval     time.Duration // reaper period (default 10m)
	StoreTimeout      time.Duration // deadline for the cold-start storage lookup (default 3s)
}

func (c *Config) norm() {
	if c.GapTimeout <= 0 {
		c.GapTimeout = 5 * time.Second
	}
	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = 100
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
}

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	trackers map[string]*tracker
}

// Engine is the per-sender ordering core: a sharded arena of trackers,
// one per (conversationID, senderID) pair. Lookup takes the shard lock,
// mutation takes the tracker lock; the storage reconciliation query runs
// under neither, so a slow store never stalls unrelated senders.
type Engine struct {
	cfg   Config
	store SeqStore
	sink  Sink

	shards [shardCount]shard

	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

// NewEngine builds and starts the engine; the idle reaper begins sweeping
// immediately. store may be nil (every tracker then starts at sequence 1);
// sink may be nil (timer flushes are dropped after advancing state).
func NewEngine(store SeqStore, sink Sink, cfg Config) *Engine {
	cfg.norm()
	e := &Engine{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		stopCh: make(chan struct{}),
	}
	for i := range e.shards {
		e.shards[i].trackers = make(map[string]*tracker)
	}
	safe.SafeGo(e.sweepLoop)
	return e
}

// Submit routes one inbound message through the ordering state machine and
// returns the batch now ready for downstream delivery, sorted ascending:
//
//   - no sequence number: the message itself, ordering bypassed
//   - seq == expected: the message plus any buffered successors
//   - seq > expected: empty, buffered (or forced flush on overflow)
//   - seq < expected: empty, stale or duplicate, silently dropped
//
// Submit never returns an error; storage trouble during cold start
// degrades to a fresh tracker, never to a failed submission.
func (e *Engine) Submit(msg *model.Message) []*model.Message {
	if msg == nil {
		return nil
	}
	if !msg.Ordered() {
		return []*model.Message{msg}
	}
	if e.stopped.Load() {
		// after Destroy everything is treated as unordered
		return []*model.Message{msg}
	}
	for {
		t := e.resolve(msg.ConversationID, msg.SenderID, msg.SeqValue())
		t.mu.Lock()
		if t.dead {
			// reaped between resolve and lock; re-resolve through storage
			t.mu.Unlock()
			continue
		}
		batch := t.submitLocked(e, msg)
		t.mu.Unlock()
		return batch
	}
}

// ForceDeliver flushes the tracker's buffer out of order-preserving
// sequence, advancing expectations past the gap. Returns nil when the
// tracker is absent or has nothing buffered.
func (e *Engine) ForceDeliver(conversationID, senderID string) []*model.Message {
	t := e.lookup(conversationID, senderID)
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead || len(t.buffer) == 0 {
		return nil
	}
	return t.flushLocked()
}

// Destroy cancels every gap timer and the reaper sweep. Safe to call
// multiple times and before any Submit; later Submits pass messages
// through unordered.
func (e *Engine) Destroy() {
	e.stopped.Store(true)
	e.stopOnce.Do(func() { close(e.stopCh) })
	for i := range e.shards {
		sh := &e.shards[i]
		sh.mu.Lock()
		for key, t := range sh.trackers {
			t.mu.Lock()
			t.dead = true
			t.disarmLocked()
			t.mu.Unlock()
			delete(sh.trackers, key)
		}
		sh.mu.Unlock()
	}
}

// TrackerCount reports live trackers across all shards.
func (e *Engine) TrackerCount() int {
	n := 0
	for i := range e.shards {
		sh := &e.shards[i]
		sh.mu.RLock()
		n += len(sh.trackers)
		sh.mu.RUnlock()
	}
	return n
}

func trackerKey(conversationID, senderID string) string {
	return conversationID + "|" + senderID
}

func (e *Engine) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &e.shards[h.Sum32()%shardCount]
}

func (e *Engine) lookup(conversationID, senderID string) *tracker {
	key := trackerKey(conversationID, senderID)
	sh := e.shardFor(key)
	sh.mu.RLock()
	t := sh.trackers[key]
	sh.mu.RUnlock()
	return t
}

// resolve returns the tracker for the pair, creating and seeding it from
// durable storage on first sight. The storage query runs before any lock
// is taken; if two submissions race, the loser discards its tracker and
// adopts the winner's.
func (e *Engine) resolve(conversationID, senderID string, observedSeq int64) *tracker {
	key := trackerKey(conversationID, senderID)
	sh := e.shardFor(key)

	sh.mu.RLock()
	t := sh.trackers[key]
	sh.mu.RUnlock()
	if t != nil {
		return t
	}

	expected := int64(1)
	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
		last, ok, err := e.store.LastSequence(ctx, conversationID, senderID, observedSeq)
		cancel()
		if err != nil {
			// stay available: assume a fresh sender and keep going
			logger.Error("seq reconcile failed, assuming fresh sender",
				zap.String("conversation_id", conversationID),
				zap.String("sender_id", senderID),
				zap.Error(err))
		} else if ok {
			expected = last + 1
		}
	}

	nt := newTracker(conversationID, senderID, expected)
	sh.mu.Lock()
	if cur := sh.trackers[key]; cur != nil {
		sh.mu.Unlock()
		return cur
	}
	sh.trackers[key] = nt
	sh.mu.Unlock()
	return nt
}

// gapFired is the timer callback. The generation check makes a stale fire
// (timer racing a concurrent drain or reap) a guaranteed no-op.
func (e *Engine) gapFired(conversationID, senderID string, gen uint64) {
	t := e.lookup(conversationID, senderID)
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.dead || t.gen != gen || len(t.buffer) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.flushLocked()
	t.mu.Unlock()

	logger.Warn("gap timeout, forcing delivery",
		zap.String("conversation_id", conversationID),
		zap.String("sender_id", senderID),
		zap.Int("batch", len(batch)))
	if e.sink != nil && len(batch) > 0 {
		e.sink(conversationID, senderID, batch)
	}
}
