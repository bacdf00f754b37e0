// Package eventstore maps sessions and events onto object-store keys. Sessions have no
// record of their own: a session exists while at least one key sits under its prefix.
package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/session-event-api/internal/models"
	"github.com/PratikDhanave/session-event-api/internal/store"
)

const contentTypeJSON = "application/json"

// ErrBucketMissing is returned by Ready when the bucket has not been created.
var ErrBucketMissing = errors.New("event bucket does not exist")

// Recorder is notified about ingested and unreadable events.
type Recorder interface {
	EventIngested()
	EventSkipped()
}

type nopRecorder struct{}

func (nopRecorder) EventIngested() {}
func (nopRecorder) EventSkipped()  {}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used for event ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Store reads and writes session events through an object store handle.
type Store struct {
	objects store.ObjectStore
	log     zerolog.Logger
	rec     Recorder
	now     func() time.Time
	newID   func() string
}

func New(objects store.ObjectStore, opts ...Option) *Store {
	s := &Store{
		objects: objects,
		log:     zerolog.Nop(),
		rec:     nopRecorder{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureBucket creates the event bucket if it is missing.
func (s *Store) EnsureBucket(ctx context.Context) error {
	return s.objects.EnsureBucket(ctx)
}

// Ready reports whether the event bucket is reachable and present.
func (s *Store) Ready(ctx context.Context) error {
	ok, err := s.objects.BucketExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBucketMissing
	}
	return nil
}

// CreateEvent stores payload as a new event and returns it with id and timestamp filled
// in. Values the caller already supplied for those keys are kept. payload is not modified.
func (s *Store) CreateEvent(ctx context.Context, sessionID string, payload map[string]any) (models.Event, error) {
	eventID := s.newID()
	millis := s.now().UnixMilli()
	key := EventKey(sessionID, millis, eventID)

	event := make(models.Event, len(payload)+2)
	for k, v := range payload {
		event[k] = v
	}
	if _, ok := event[models.FieldID]; !ok {
		event[models.FieldID] = eventID
	}
	if _, ok := event[models.FieldTimestamp]; !ok {
		event[models.FieldTimestamp] = millis
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	if err := s.objects.PutObject(ctx, key, body, contentTypeJSON); err != nil {
		return nil, err
	}

	s.rec.EventIngested()
	s.log.Debug().Str("session_id", sessionID).Str("key", key).Msg("event stored")
	return event, nil
}

// ListSessions returns every session id that has at least one event.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	prefixes, err := s.objects.ListCommonPrefixes(ctx, SessionsPrefix, keyDelimiter)
	if err != nil {
		return nil, err
	}

	sessions := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if id, ok := SessionFromPrefix(p); ok {
			sessions = append(sessions, id)
		}
	}
	return sessions, nil
}

// ListSessionEvents returns a session's events oldest first. Objects that cannot be read
// or decoded are logged and left out. An unknown session yields an empty slice.
func (s *Store) ListSessionEvents(ctx context.Context, sessionID string) ([]models.Event, error) {
	prefix := SessionPrefix(sessionID)
	keys, err := s.objects.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sortEventKeys(prefix, keys)

	events := make([]models.Event, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.objects.GetObject(ctx, key)
		if err != nil {
			s.skip(key, err)
			continue
		}
		event, err := decodeEvent(data)
		if err != nil {
			s.skip(key, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Store) skip(key string, err error) {
	s.rec.EventSkipped()
	s.log.Warn().Err(err).Str("key", key).Msg("skipping unreadable event")
}

// decodeEvent keeps numbers as json.Number so ids and timestamps round-trip unchanged.
func decodeEvent(data []byte) (models.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var event models.Event
	if err := dec.Decode(&event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event == nil {
		return nil, errors.New("decode event: not a JSON object")
	}
	return event, nil
}
