package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/session-event-api/internal/models"
	"github.com/PratikDhanave/session-event-api/internal/store"
)

// memStore is an in-memory store.ObjectStore with switchable failures.
type memStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	bucket       bool
	putErr       error
	listErr      error
	getErr       map[string]error
	calls        int
}

func newMemStore() *memStore {
	return &memStore{
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
		getErr:       map[string]error{},
	}
}

func (m *memStore) EnsureBucket(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.bucket = true
	return nil
}

func (m *memStore) BucketExists(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.bucket, nil
}

func (m *memStore) PutObject(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = append([]byte(nil), data...)
	m.contentTypes[key] = contentType
	return nil
}

func (m *memStore) GetObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.getErr[key]; err != nil {
		return nil, err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrObjectNotFound
	}
	return data, nil
}

func (m *memStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	keys := []string{}
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) ListCommonPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	keys, err := m.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, k := range keys {
		rest := k[len(prefix):]
		if i := strings.Index(rest, delimiter); i >= 0 {
			p := prefix + rest[:i+1]
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

type countingRecorder struct{ ingested, skipped int }

func (c *countingRecorder) EventIngested() { c.ingested++ }
func (c *countingRecorder) EventSkipped()  { c.skipped++ }

// tickingClock returns a clock that advances one millisecond per call.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Millisecond)
		return t
	}
}

func TestCreateEventInjectsIDAndTimestamp(t *testing.T) {
	mem := newMemStore()
	now := time.UnixMilli(1_700_000_000_123)
	rec := &countingRecorder{}
	s := New(mem,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return "evt-1" }),
		WithRecorder(rec),
	)

	payload := map[string]any{"message": "Session Started"}
	got, err := s.CreateEvent(context.Background(), "user-123", payload)
	require.NoError(t, err)

	assert.Equal(t, "Session Started", got["message"])
	assert.Equal(t, "evt-1", got[models.FieldID])
	assert.Equal(t, int64(1_700_000_000_123), got[models.FieldTimestamp])
	assert.NotContains(t, payload, models.FieldID, "caller payload must not be mutated")
	assert.Equal(t, 1, rec.ingested)

	key := "sessions/user-123/1700000000123_evt-1.json"
	require.Contains(t, mem.objects, key)
	assert.Equal(t, "application/json", mem.contentTypes[key])
	assert.JSONEq(t, `{"message":"Session Started","id":"evt-1","timestamp":1700000000123}`, string(mem.objects[key]))
}

func TestCreateEventPreservesCallerValues(t *testing.T) {
	mem := newMemStore()
	s := New(mem)

	got, err := s.CreateEvent(context.Background(), "s1", map[string]any{
		"id":        "client-id",
		"timestamp": "yesterday",
	})
	require.NoError(t, err)
	assert.Equal(t, "client-id", got["id"])
	assert.Equal(t, "yesterday", got["timestamp"])

	// The key still uses the generated identity.
	require.Len(t, mem.objects, 1)
	for key := range mem.objects {
		assert.True(t, strings.HasPrefix(key, "sessions/s1/"))
		assert.NotContains(t, key, "client-id")
	}
}

func TestCreateEventGeneratesUUID(t *testing.T) {
	s := New(newMemStore())

	got, err := s.CreateEvent(context.Background(), "s1", map[string]any{})
	require.NoError(t, err)

	id, ok := got["id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotZero(t, got["timestamp"])
}

func TestCreateEventPropagatesPutError(t *testing.T) {
	mem := newMemStore()
	mem.putErr = errors.New("put object: connection refused")
	rec := &countingRecorder{}
	s := New(mem, WithRecorder(rec))

	_, err := s.CreateEvent(context.Background(), "s1", map[string]any{"a": 1})
	assert.EqualError(t, err, "put object: connection refused")
	assert.Zero(t, rec.ingested)
}

func TestListSessionsReturnsDistinctSessions(t *testing.T) {
	s := New(newMemStore(), WithClock(tickingClock(time.UnixMilli(1_700_000_000_000))))
	ctx := context.Background()

	for _, id := range []string{"alpha", "beta", "gamma", "beta"} {
		_, err := s.CreateEvent(ctx, id, map[string]any{"n": id})
		require.NoError(t, err)
	}

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, sessions)
}

func TestListSessionsEmpty(t *testing.T) {
	sessions, err := New(newMemStore()).ListSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestListSessionsPropagatesError(t *testing.T) {
	mem := newMemStore()
	mem.listErr = errors.New("list objects: timeout")

	_, err := New(mem).ListSessions(context.Background())
	assert.EqualError(t, err, "list objects: timeout")
}

func TestListSessionEventsChronological(t *testing.T) {
	s := New(newMemStore(), WithClock(tickingClock(time.UnixMilli(1_700_000_000_000))))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := s.CreateEvent(ctx, "s1", map[string]any{"seq": i})
		require.NoError(t, err)
	}
	_, err := s.CreateEvent(ctx, "s2", map[string]any{"seq": 99})
	require.NoError(t, err)

	events, err := s.ListSessionEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, json.Number(fmt.Sprint(i+1)), ev["seq"])
	}
}

func TestListSessionEventsUnknownSession(t *testing.T) {
	events, err := New(newMemStore()).ListSessionEvents(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestListSessionEventsSkipsUnreadableObjects(t *testing.T) {
	mem := newMemStore()
	rec := &countingRecorder{}
	var logs bytes.Buffer
	s := New(mem, WithRecorder(rec), WithLogger(zerolog.New(&logs)))
	ctx := context.Background()

	mem.objects["sessions/s1/1_a.json"] = []byte(`{"n":1}`)
	mem.objects["sessions/s1/2_b.json"] = []byte(`{not json`)
	mem.objects["sessions/s1/3_c.json"] = []byte(`[1,2]`)
	mem.objects["sessions/s1/4_d.json"] = []byte(`{"n":4}`)
	mem.objects["sessions/s1/5_e.json"] = []byte(`{"n":5}`)
	mem.getErr["sessions/s1/5_e.json"] = errors.New("get object: reset by peer")

	events, err := s.ListSessionEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, json.Number("1"), events[0]["n"])
	assert.Equal(t, json.Number("4"), events[1]["n"])
	assert.Equal(t, 3, rec.skipped)
	assert.Contains(t, logs.String(), "sessions/s1/2_b.json")
}

func TestListSessionEventsKeepsLargeNumbersExact(t *testing.T) {
	mem := newMemStore()
	mem.objects["sessions/s1/1700000000123_a.json"] = []byte(`{"timestamp":1700000000123,"big":9007199254740993}`)

	events, err := New(mem).ListSessionEvents(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	out, err := json.Marshal(events[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":1700000000123,"big":9007199254740993}`, string(out))
}

func TestListSessionEventsStopsOnCancelledContext(t *testing.T) {
	mem := newMemStore()
	mem.objects["sessions/s1/1_a.json"] = []byte(`{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(mem).ListSessionEvents(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReady(t *testing.T) {
	mem := newMemStore()
	s := New(mem)

	assert.ErrorIs(t, s.Ready(context.Background()), ErrBucketMissing)
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.NoError(t, s.Ready(context.Background()))
}
