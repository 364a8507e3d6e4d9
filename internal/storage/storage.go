// Package storage resolves the object-store key layout and implements
// JSON/media I/O, dedup markers, and manifest operations on top of it.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"caseflow/internal/domain"
	"caseflow/internal/objectstore"
)

// Storage is instantiated per (operator, user) and carries a mutable
// case_id cursor, set by the caller before any case-scoped operation.
type Storage struct {
	store  objectstore.Backend
	keys   Keys
	caseID int
}

func New(store objectstore.Backend, operatorID, userID string) *Storage {
	return &Storage{store: store, keys: Keys{OperatorID: operatorID, UserID: userID}}
}

// SetCaseID sets the case scope for subsequent case-scoped calls.
func (s *Storage) SetCaseID(caseID int) {
	s.caseID = caseID
}

func (s *Storage) CaseID() int {
	return s.caseID
}

func (s *Storage) Keys() Keys {
	return s.keys
}

// JSONRead decodes the object at key into out and returns true, or returns
// (false, nil) without touching out if the key is absent.
func (s *Storage) JSONRead(ctx context.Context, key string, out any) (bool, error) {
	if !s.store.Head(ctx, key) {
		return false, nil
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return true, nil
}

func (s *Storage) JSONWrite(ctx context.Context, key string, obj any) error {
	return s.store.PutJSON(ctx, key, obj)
}

func (s *Storage) DedupExists(ctx context.Context, idempotencyKey string) bool {
	return s.store.Head(ctx, s.keys.Dedup(idempotencyKey))
}

func (s *Storage) DedupWrite(ctx context.Context, idempotencyKey string) error {
	return s.store.Put(ctx, s.keys.Dedup(idempotencyKey), []byte("{}"), "application/json; charset=utf-8")
}

// MessageRead rehydrates the stored message by id. A missing key or an
// unknown basemodel tag both return (nil, nil): a malformed stored message
// is treated as absent so the case stays usable.
func (s *Storage) MessageRead(ctx context.Context, messageID string) (domain.Message, error) {
	key := s.keys.Message(s.caseID, messageID)
	if !s.store.Head(ctx, key) {
		return nil, nil
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading message %s: %w", messageID, err)
	}
	msg, err := domain.UnmarshalMessage(raw)
	if err != nil {
		return nil, nil
	}
	return msg, nil
}

func (s *Storage) MessageWrite(ctx context.Context, msg domain.Message) error {
	key := s.keys.Message(s.caseID, msg.Meta().ID)
	return s.store.PutJSON(ctx, key, msg)
}

// MediaGet returns the raw bytes for filename, or (nil, false) if absent.
func (s *Storage) MediaGet(ctx context.Context, filename string) ([]byte, bool, error) {
	key := s.keys.Media(s.caseID, filename)
	if !s.store.Head(ctx, key) {
		return nil, false, nil
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("reading media %s: %w", filename, err)
	}
	return raw, true, nil
}

// MediaWrite writes media content only if the key is absent: first-writer
// wins for a given filename.
func (s *Storage) MediaWrite(ctx context.Context, msg *domain.UserContentMsg, content domain.MediaContent) error {
	if msg.Media == nil {
		return fmt.Errorf("message %s has no media metadata", msg.ID)
	}
	key := s.keys.Media(s.caseID, msg.Media.Name)
	if s.store.Head(ctx, key) {
		return nil
	}
	return s.store.Put(ctx, key, content.Content, content.Mime)
}

// GetNextCaseID scans the cases/ directories for the maximum numeric name
// and returns max+1, or 1 if none exist.
func (s *Storage) GetNextCaseID(ctx context.Context) (int, error) {
	dirs, err := s.store.ListDirectories(ctx, s.keys.CasesDir())
	if err != nil {
		return 0, fmt.Errorf("listing case directories: %w", err)
	}
	max := 0
	for _, dir := range dirs {
		n, err := strconv.Atoi(dir)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (s *Storage) ManifestLoad(ctx context.Context) (*domain.CaseManifest, bool, error) {
	var m domain.CaseManifest
	found, err := s.JSONRead(ctx, s.keys.Manifest(s.caseID), &m)
	if err != nil || !found {
		return nil, found, err
	}
	return &m, true, nil
}

func (s *Storage) ManifestWrite(ctx context.Context, m *domain.CaseManifest) error {
	return s.JSONWrite(ctx, s.keys.Manifest(s.caseID), m)
}

// ManifestAppend appends msg's id to the manifest if not already present,
// bumps time_last_message if the new message is later, and rewrites the
// manifest. Idempotent by construction: re-appending an already-recorded id
// is a no-op for message_ids (time_last_message may still advance).
func (s *Storage) ManifestAppend(ctx context.Context, m *domain.CaseManifest, msg domain.Message) error {
	meta := msg.Meta()
	if !m.HasMessage(meta.ID) {
		m.MessageIDs = append(m.MessageIDs, meta.ID)
	}

	msgTime := maxTimestamp(meta.TimeCreated, meta.TimeReceived)
	if m.TimeLastMessage == "" || msgTime.After(mustParse(m.TimeLastMessage)) {
		m.TimeLastMessage = domain.FormatUTCISO(msgTime)
	}

	return s.ManifestWrite(ctx, m)
}

func maxTimestamp(created, received string) time.Time {
	now := time.Now().UTC()
	ct, err := domain.ParseUTCISO(created)
	if err != nil {
		ct = now
	}
	rt, err := domain.ParseUTCISO(received)
	if err != nil {
		rt = now
	}
	if ct.After(rt) {
		return ct
	}
	return rt
}

func mustParse(s string) time.Time {
	t, err := domain.ParseUTCISO(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// LoadContext reads every message referenced by manifest.message_ids,
// silently skipping ones that are missing or malformed, sorts by
// (time_created, time_received), and keeps only the last maxLen when
// truncate is set.
func (s *Storage) LoadContext(ctx context.Context, m *domain.CaseManifest, maxLen int, truncate bool) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(m.MessageIDs))
	for _, id := range m.MessageIDs {
		msg, err := s.MessageRead(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i].Meta(), messages[j].Meta()
		if a.TimeCreated != b.TimeCreated {
			return a.TimeCreated < b.TimeCreated
		}
		return a.TimeReceived < b.TimeReceived
	})

	if truncate && len(messages) > maxLen {
		messages = messages[len(messages)-maxLen:]
	}
	return messages, nil
}
