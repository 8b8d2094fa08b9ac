package engine

import (
	"chatly-client/internal/chat"
	mytesting "chatly-client/internal/testing"
	"errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"testing"
)

func bootstrapSynchronizer(t *testing.T) *Synchronizer {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	return NewSynchronizer(logger.Sugar())
}

func TestAppendIdempotent(t *testing.T) {
	t.Parallel()

	s := bootstrapSynchronizer(t)
	m := mytesting.Message("a", "b")

	changed, err := s.AppendConfirmed(m)
	require.NoError(t, err)
	require.True(t, changed)
	once := s.Snapshot()

	changed, err = s.AppendConfirmed(m)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = s.AppendPushed(m)
	require.NoError(t, err)
	require.False(t, changed)

	twice := s.Snapshot()
	require.Equal(t, once, twice)
	require.Equal(t, []chat.Message{m}, twice.Messages)
}

func TestAppendKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	s := bootstrapSynchronizer(t)
	messages := mytesting.Exchange("a", "b", 6)

	for i, m := range messages {
		var err error
		if i%2 == 0 {
			_, err = s.AppendConfirmed(m)
		} else {
			_, err = s.AppendPushed(m)
		}
		require.NoError(t, err)
	}

	snapshot := s.Snapshot()
	require.Equal(t, messages, snapshot.Messages)
	require.Equal(t, uint64(len(messages)), snapshot.Version)
}

func TestAppendFirstArrivalWinsPosition(t *testing.T) {
	t.Parallel()

	s := bootstrapSynchronizer(t)
	first := mytesting.Message("a", "b")
	second := mytesting.Message("b", "a")

	// push echo of own message arrives before the send confirmation
	_, err := s.AppendPushed(first)
	require.NoError(t, err)
	_, err = s.AppendPushed(second)
	require.NoError(t, err)
	_, err = s.AppendConfirmed(first)
	require.NoError(t, err)

	require.Equal(t, []chat.Message{first, second}, s.Snapshot().Messages)
}

func TestAppendMissingID(t *testing.T) {
	t.Parallel()

	s := bootstrapSynchronizer(t)

	_, err := s.AppendPushed(chat.Message{Sender: "a", Receiver: "b", Text: "hi"})
	require.True(t, errors.Is(err, chat.ErrMissingID))

	_, err = s.AppendConfirmed(chat.Message{ID: "  ", Sender: "a", Receiver: "b", Text: "hi"})
	require.True(t, errors.Is(err, chat.ErrMissingID))

	require.Equal(t, 0, s.Len())
	require.Equal(t, uint64(0), s.Snapshot().Version)
}

func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	s := bootstrapSynchronizer(t)
	m := mytesting.Message("a", "b")
	_, err := s.AppendPushed(m)
	require.NoError(t, err)

	snapshot := s.Snapshot()
	snapshot.Messages[0].Text = "changed"

	require.Equal(t, m.Text, s.Snapshot().Messages[0].Text)
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	s := bootstrapSynchronizer(t)

	var versions []uint64
	unsubscribe := s.Subscribe(func(snapshot Snapshot) {
		versions = append(versions, snapshot.Version)
	})

	m := mytesting.Message("a", "b")
	_, err := s.AppendPushed(m)
	require.NoError(t, err)
	_, err = s.AppendConfirmed(m)
	require.NoError(t, err)
	_, err = s.AppendConfirmed(mytesting.Message("b", "a"))
	require.NoError(t, err)

	// duplicates do not notify
	require.Equal(t, []uint64{1, 2}, versions)

	unsubscribe()
	unsubscribe()

	_, err = s.AppendPushed(mytesting.Message("a", "b"))
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, versions)
}
