package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubStore struct {
	seq   int64
	ok    bool
	err   error
	calls int
}

func (s *stubStore) LastSequence(_ context.Context, _, _ string, _ int64) (int64, bool, error) {
	s.calls++
	return s.seq, s.ok, s.err
}

func TestCachedSeqStoreWithoutRedisDelegates(t *testing.T) {
	next := &stubStore{seq: 7, ok: true}
	s := NewCachedSeqStore(nil, next, 0)

	got, ok, err := s.LastSequence(context.Background(), "c1", "alice", 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), got)
	require.Equal(t, 1, next.calls)

	// Remember with the cache disabled is a no-op, not a panic
	s.Remember(context.Background(), "c1", "alice", 8)
}

func TestCachedSeqStoreWithoutAnything(t *testing.T) {
	s := NewCachedSeqStore(nil, nil, 0)
	_, ok, err := s.LastSequence(context.Background(), "c1", "alice", 10)
	require.NoError(t, err)
	require.False(t, ok)
}
