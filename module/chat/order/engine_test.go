package order

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"SeqChat/module/chat/model"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	last  map[string]int64 // "conv|sender" -> max committed seq
	err   error
	calls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{last: make(map[string]int64)}
}

// last[key]=N models a contiguous committed prefix 1..N, so the highest
// committed sequence below `below` is min(N, below-1).
func (f *fakeStore) LastSequence(_ context.Context, conv, sender string, below int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, false, f.err
	}
	v, ok := f.last[conv+"|"+sender]
	if !ok {
		return 0, false, nil
	}
	if v >= below {
		v = below - 1
	}
	if v < 1 {
		return 0, false, nil
	}
	return v, true, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func mk(conv, sender string, seq int64) *model.Message {
	m := model.Message{
		ID:             fmt.Sprintf("%s-%s-%d", conv, sender, seq),
		ConversationID: conv,
		SenderID:       sender,
		Content:        fmt.Sprintf("hello %d", seq),
		CreateTime:     time.Now().UnixMilli(),
	}
	if seq > 0 {
		return m.WithSeq(seq)
	}
	m.ID = fmt.Sprintf("%s-%s-unordered", conv, sender)
	return &m
}

func seqsOf(t *testing.T, batch []*model.Message) []int64 {
	t.Helper()
	out := make([]int64, 0, len(batch))
	for _, m := range batch {
		require.NotNil(t, m.Seq)
		out = append(out, *m.Seq)
	}
	return out
}

func TestInOrderDelivery(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{})
	defer e.Destroy()

	for seq := int64(1); seq <= 3; seq++ {
		batch := e.Submit(mk("c1", "alice", seq))
		require.Len(t, batch, 1)
		require.Equal(t, seq, batch[0].SeqValue())
	}
}

func TestUnorderedBypass(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{})
	defer e.Destroy()

	m := mk("c1", "alice", 0) // no sequence number
	batch := e.Submit(m)
	require.Len(t, batch, 1)
	require.Same(t, m, batch[0])
	// bypass must not create tracker state
	require.Equal(t, 0, e.TrackerCount())
}

func TestGapFill(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Empty(t, e.Submit(mk("c1", "alice", 3)))

	batch := e.Submit(mk("c1", "alice", 2))
	require.Equal(t, []int64{2, 3}, seqsOf(t, batch))
}

func TestMultiGapFill(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	for _, seq := range []int64{5, 4, 3} {
		require.Empty(t, e.Submit(mk("c1", "alice", seq)))
	}

	batch := e.Submit(mk("c1", "alice", 2))
	require.Equal(t, []int64{2, 3, 4, 5}, seqsOf(t, batch))
}

func TestTimeoutFlush(t *testing.T) {
	flushed := make(chan []*model.Message, 1)
	sink := func(conv, sender string, batch []*model.Message) {
		flushed <- batch
	}
	e := NewEngine(newFakeStore(), sink, Config{GapTimeout: 30 * time.Millisecond})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Empty(t, e.Submit(mk("c1", "alice", 3)))

	select {
	case batch := <-flushed:
		require.Equal(t, []int64{3}, seqsOf(t, batch))
	case <-time.After(2 * time.Second):
		t.Fatal("gap timer never fired")
	}

	// expectation advanced past the gap: 2 is stale now, 4 is next
	require.Empty(t, e.Submit(mk("c1", "alice", 2)))
	require.Len(t, e.Submit(mk("c1", "alice", 4)), 1)
}

func TestTimerDisarmedOnDrain(t *testing.T) {
	flushed := make(chan []*model.Message, 1)
	sink := func(conv, sender string, batch []*model.Message) {
		flushed <- batch
	}
	e := NewEngine(newFakeStore(), sink, Config{GapTimeout: 40 * time.Millisecond})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Empty(t, e.Submit(mk("c1", "alice", 3)))
	batch := e.Submit(mk("c1", "alice", 2))
	require.Equal(t, []int64{2, 3}, seqsOf(t, batch))

	select {
	case b := <-flushed:
		t.Fatalf("stale timer flushed %v after drain", seqsOf(t, b))
	case <-time.After(120 * time.Millisecond):
	}
}

func TestOverflowFlush(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{MaxBufferSize: 3, GapTimeout: time.Hour})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	for _, seq := range []int64{3, 4, 5} {
		require.Empty(t, e.Submit(mk("c1", "alice", seq)))
	}

	// fourth out-of-order message breaks the cap and flushes everything
	batch := e.Submit(mk("c1", "alice", 6))
	require.Equal(t, []int64{3, 4, 5, 6}, seqsOf(t, batch))

	// the gap at 2 is skipped for good
	require.Empty(t, e.Submit(mk("c1", "alice", 2)))
	require.Len(t, e.Submit(mk("c1", "alice", 7)), 1)
}

func TestForceDeliver(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{GapTimeout: time.Hour})
	defer e.Destroy()

	require.Nil(t, e.ForceDeliver("c1", "nobody"))

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Empty(t, e.Submit(mk("c1", "alice", 4)))
	require.Empty(t, e.Submit(mk("c1", "alice", 3)))

	batch := e.ForceDeliver("c1", "alice")
	require.Equal(t, []int64{3, 4}, seqsOf(t, batch))
	require.Nil(t, e.ForceDeliver("c1", "alice")) // buffer already empty
	require.Len(t, e.Submit(mk("c1", "alice", 5)), 1)
}

func TestPerSenderIndependence(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{GapTimeout: time.Hour})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Len(t, e.Submit(mk("c1", "bob", 1)), 1)

	// alice opens a gap; bob keeps flowing
	require.Empty(t, e.Submit(mk("c1", "alice", 3)))
	require.Len(t, e.Submit(mk("c1", "bob", 2)), 1)
	require.Len(t, e.Submit(mk("c1", "bob", 3)), 1)
	require.Equal(t, 2, e.TrackerCount())
}

func TestDuplicateRejection(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{GapTimeout: time.Hour})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Len(t, e.Submit(mk("c1", "alice", 2)), 1)

	// already delivered
	require.Empty(t, e.Submit(mk("c1", "alice", 2)))
	// already buffered
	require.Empty(t, e.Submit(mk("c1", "alice", 5)))
	require.Empty(t, e.Submit(mk("c1", "alice", 5)))

	// tracker state unchanged: 3 still drains up to the buffered 5
	require.Empty(t, e.Submit(mk("c1", "alice", 4)))
	batch := e.Submit(mk("c1", "alice", 3))
	require.Equal(t, []int64{3, 4, 5}, seqsOf(t, batch))
}

func TestStaleAndZeroRejection(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{})
	defer e.Destroy()

	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Len(t, e.Submit(mk("c1", "alice", 2)), 1)

	require.Empty(t, e.Submit(mk("c1", "alice", 1)))
	zero := int64(0)
	m := mk("c1", "alice", 1)
	m.Seq = &zero
	require.Empty(t, e.Submit(m))
}

func TestReconcilerSeedsFromStore(t *testing.T) {
	store := newFakeStore()
	store.last["c1|alice"] = 41
	e := NewEngine(store, nil, Config{GapTimeout: time.Hour})
	defer e.Destroy()

	// restart scenario: sender continues at 42, engine must not expect 1
	require.Len(t, e.Submit(mk("c1", "alice", 42)), 1)
	require.Len(t, e.Submit(mk("c1", "alice", 43)), 1)
	// anything at or below the committed watermark is stale now
	require.Empty(t, e.Submit(mk("c1", "alice", 41)))
}

func TestReconcilerQueriedOncePerTracker(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, nil, Config{})
	defer e.Destroy()

	for seq := int64(1); seq <= 5; seq++ {
		e.Submit(mk("c1", "alice", seq))
	}
	require.Equal(t, 1, store.callCount())
}

func TestReconcilerStoreErrorFallsBack(t *testing.T) {
	store := newFakeStore()
	store.err = fmt.Errorf("mongo down")
	e := NewEngine(store, nil, Config{})
	defer e.Destroy()

	// storage failure must not surface; tracker assumes a fresh sender
	require.Len(t, e.Submit(mk("c1", "alice", 1)), 1)
	require.Len(t, e.Submit(mk("c1", "alice", 2)), 1)
}

func TestDestroy(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{GapTimeout: time.Hour})
	e.Destroy()
	e.Destroy() // idempotent

	// after shutdown everything degrades to unordered pass-through
	batch := e.Submit(mk("c1", "alice", 7))
	require.Len(t, batch, 1)
	require.Equal(t, 0, e.TrackerCount())

	fresh := NewEngine(newFakeStore(), nil, Config{})
	fresh.Destroy() // safe before any Submit
}

func TestConcurrentSendersDoNotCrossContaminate(t *testing.T) {
	e := NewEngine(newFakeStore(), nil, Config{GapTimeout: time.Hour, MaxBufferSize: 200})
	defer e.Destroy()

	const senders = 8
	const perSender = 100

	var mu sync.Mutex
	delivered := make(map[string][]int64)

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		sender := fmt.Sprintf("user-%d", s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			perm := rand.Perm(perSender)
			for _, p := range perm {
				batch := e.Submit(mk("room", sender, int64(p+1)))
				if len(batch) == 0 {
					continue
				}
				mu.Lock()
				for _, m := range batch {
					delivered[m.SenderID] = append(delivered[m.SenderID], m.SeqValue())
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for s := 0; s < senders; s++ {
		sender := fmt.Sprintf("user-%d", s)
		got := delivered[sender]
		require.Len(t, got, perSender, "sender %s", sender)
		seen := make(map[int64]bool, perSender)
		for _, seq := range got {
			require.False(t, seen[seq], "sender %s surfaced seq %d twice", sender, seq)
			seen[seq] = true
		}
	}
}
