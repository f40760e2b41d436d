package order

import (
	"sort"
	"sync"
	"time"

	"SeqChat/module/chat/model"
)

// bufferedMessage wraps an early arrival with its arrival time.
type bufferedMessage struct {
	msg        *model.Message
	bufferedAt time.Time
}

// tracker is the ordering state for one (conversation, sender) pair.
//
// Invariants, all under mu:
//   - expected is monotonically non-decreasing
//   - every buffer key is strictly greater than expected
//   - the gap timer is armed iff the buffer is non-empty, and it is one
//     timer for the oldest pending gap, not one per buffered message
type tracker struct {
	mu             sync.Mutex
	conversationID string
	senderID       string

	expected     int64
	buffer       map[int64]bufferedMessage
	timer        *time.Timer
	gen          uint64 // bumped on every arm/disarm; stale timer fires no-op
	lastActivity time.Time
	dead         bool // set by the reaper / Destroy; holders must re-resolve
}

func newTracker(conversationID, senderID string, expected int64) *tracker {
	if expected < 1 {
		expected = 1
	}
	return &tracker{
		conversationID: conversationID,
		senderID:       senderID,
		expected:       expected,
		buffer:         make(map[int64]bufferedMessage),
		lastActivity:   time.Now(),
	}
}

func (t *tracker) submitLocked(e *Engine, msg *model.Message) []*model.Message {
	t.lastActivity = time.Now()
	seq := msg.SeqValue()

	switch {
	case seq == t.expected:
		out := []*model.Message{msg}
		t.expected++
		// drain: buffered successors become deliverable in one batch
		for {
			bm, ok := t.buffer[t.expected]
			if !ok {
				break
			}
			delete(t.buffer, t.expected)
			out = append(out, bm.msg)
			t.expected++
		}
		if len(t.buffer) == 0 {
			t.disarmLocked()
		}
		return out

	case seq > t.expected:
		if _, dup := t.buffer[seq]; dup {
			return nil
		}
		t.buffer[seq] = bufferedMessage{msg: msg, bufferedAt: time.Now()}
		if len(t.buffer) > e.cfg.MaxBufferSize {
			// overflow: the message that broke the cap goes out with the
			// rest; the missing sequence below is skipped for good
			return t.flushLocked()
		}
		if t.timer == nil {
			t.armLocked(e)
		}
		return nil

	default:
		// stale or duplicate (including seq 0); dropped without a trace
		return nil
	}
}

// flushLocked empties the buffer in ascending sequence order and gives up
// on every missing sequence below the flushed range: expected jumps to
// highest flushed + 1. A permanently lost message is never retried, only
// skipped past; that is the documented liveness trade-off.
func (t *tracker) flushLocked() []*model.Message {
	if len(t.buffer) == 0 {
		return nil
	}
	seqs := make([]int64, 0, len(t.buffer))
	for s := range t.buffer {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	out := make([]*model.Message, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, t.buffer[s].msg)
	}
	t.buffer = make(map[int64]bufferedMessage)
	t.expected = seqs[len(seqs)-1] + 1
	t.disarmLocked()
	return out
}

func (t *tracker) armLocked(e *Engine) {
	t.gen++
	gen := t.gen
	conv, sender := t.conversationID, t.senderID
	t.timer = time.AfterFunc(e.cfg.GapTimeout, func() {
		e.gapFired(conv, sender, gen)
	})
}

func (t *tracker) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
