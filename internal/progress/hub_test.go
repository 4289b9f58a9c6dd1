package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFlushesBySize(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := pageEvent(StageDispatched)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesByTimer(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(pageEvent(StageLoaded))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event), logger: zap.NewNop(), dropLog: logThrottle{interval: time.Hour}}
	start := time.Now()
	hub.Emit(pageEvent(StageDone))
	hub.Emit(pageEvent(StageDone))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.EqualValues(t, 2, hub.Dropped())
}

func TestHubDrainsOnClose(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(pageEvent(StagePersisted))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.True(t, sink.closed)

	hub.Emit(pageEvent(StagePersisted))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDiscardsInvalid(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{Stage: StageLoaded})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, pageEvent(StageDispatched).Validate())
	require.NoError(t, Event{RunID: uuid.New(), TS: time.Now(), Stage: StageRunStart}.Validate())

	noSite := pageEvent(StageLoaded)
	noSite.Site = ""
	require.Error(t, noSite.Validate())

	skipped := pageEvent(StageSkipped)
	require.Error(t, skipped.Validate())
	skipped.Reason = "capability_timeout"
	require.NoError(t, skipped.Validate())

	unknown := pageEvent(Stage("NOPE"))
	require.Error(t, unknown.Validate())

	negative := pageEvent(StageDone)
	negative.Dur = -time.Second
	require.Error(t, negative.Validate())
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func pageEvent(stage Stage) Event {
	return Event{
		RunID: uuid.New(),
		TS:    time.Now(),
		Stage: stage,
		Site:  "example.com",
		URL:   "https://example.com/",
	}
}
