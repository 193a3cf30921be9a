package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sin3107/matching-sub001/internal/models"
)

// memDB is the in-memory backing for the store stubs. Tests drive its clock
// to place messages at exact instants.
type memDB struct {
	mu      sync.Mutex
	convSeq int64
	msgSeq  int64
	convs   map[int64]*models.Conversation
	msgs    map[int64][]models.Message
	users   map[int64]*models.User
	nowFn   func() time.Time
}

func newMemDB() *memDB {
	return &memDB{
		convs: make(map[int64]*models.Conversation),
		msgs:  make(map[int64][]models.Message),
		users: make(map[int64]*models.User),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (d *memDB) now() time.Time {
	return d.nowFn()
}

func (d *memDB) addUser(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = &models.User{ID: id, Role: "user"}
}

type memSnapshot struct {
	convs map[int64]*models.Conversation
	msgs  map[int64][]models.Message
}

func (d *memDB) snapshot() memSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	convs := make(map[int64]*models.Conversation, len(d.convs))
	for id, c := range d.convs {
		copied := *c
		convs[id] = &copied
	}
	msgs := make(map[int64][]models.Message, len(d.msgs))
	for id, list := range d.msgs {
		msgs[id] = append([]models.Message(nil), list...)
	}
	return memSnapshot{convs: convs, msgs: msgs}
}

func (d *memDB) restore(s memSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.convs = s.convs
	d.msgs = s.msgs
}

// memTransactor gives the service's transactional sections all-or-nothing
// semantics over memDB: a callback error restores the pre-call state.
type memTransactor struct {
	db     *memDB
	stores ChatStores
}

func (t *memTransactor) InTx(_ context.Context, fn func(stores ChatStores) error) error {
	snapshot := t.db.snapshot()
	if err := fn(t.stores); err != nil {
		t.db.restore(snapshot)
		return err
	}
	return nil
}

type memConversationStore struct {
	db        *memDB
	recordErr error
	clearErr  error
}

func (s *memConversationStore) CreateOrGet(_ context.Context, userA, userB int64) (*models.Conversation, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.convs {
		if c.UserAID == userA && c.UserBID == userB {
			copied := *c
			return &copied, nil
		}
	}

	d.convSeq++
	now := d.now()
	c := &models.Conversation{
		ID:            d.convSeq,
		UserAID:       userA,
		UserBID:       userB,
		UserAJoinedAt: now,
		UserBJoinedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	d.convs[c.ID] = c
	copied := *c
	return &copied, nil
}

func (s *memConversationStore) GetByID(_ context.Context, conversationID int64) (*models.Conversation, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.convs[conversationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (s *memConversationStore) ListVisible(
	_ context.Context,
	viewerID int64,
	cursor *time.Time,
	limit int,
) ([]models.ConversationSummary, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	activity := func(c *models.Conversation) time.Time {
		if c.LastMessageAt != nil {
			return *c.LastMessageAt
		}
		return c.CreatedAt
	}

	candidates := make([]*models.Conversation, 0)
	for _, c := range d.convs {
		if !c.HasParticipant(viewerID) {
			continue
		}
		if c.LastMessageAt != nil && !c.LastMessageAt.After(c.JoinedAt(viewerID)) {
			continue
		}
		if cursor != nil && !activity(c).Before(*cursor) {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !activity(a).Equal(activity(b)) {
			return activity(a).After(activity(b))
		}
		return a.ID > b.ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	summaries := make([]models.ConversationSummary, 0, len(candidates))
	for _, c := range candidates {
		summaries = append(summaries, models.ConversationSummary{
			Conversation: *c,
			PeerID:       c.PeerOf(viewerID),
			UnreadCount:  c.UnreadFor(viewerID),
		})
	}
	return summaries, nil
}

func (s *memConversationStore) UpdateJoinedAt(
	_ context.Context,
	conversationID, userID int64,
	at time.Time,
) (*models.Conversation, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.convs[conversationID]
	if !ok || !c.HasParticipant(userID) {
		return nil, pgx.ErrNoRows
	}
	if c.UserAID == userID {
		c.UserAJoinedAt = at
	} else {
		c.UserBJoinedAt = at
	}
	c.UpdatedAt = d.now()
	copied := *c
	return &copied, nil
}

func (s *memConversationStore) RecordMessage(
	_ context.Context,
	conversationID, recipientID int64,
	at time.Time,
	contentType, preview string,
) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.convs[conversationID]
	if !ok {
		return nil
	}
	ts := at
	c.LastMessageAt = &ts
	c.LastMessageType = &contentType
	c.LastMessagePreview = &preview
	if c.UserAID == recipientID {
		c.UserAUnread++
	} else if c.UserBID == recipientID {
		c.UserBUnread++
	}
	return nil
}

func (s *memConversationStore) ClearUnread(_ context.Context, conversationID, userID int64) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.convs[conversationID]
	if !ok {
		return nil
	}
	if c.UserAID == userID {
		c.UserAUnread = 0
	} else if c.UserBID == userID {
		c.UserBUnread = 0
	}
	return nil
}

func (s *memConversationStore) ListExpiredBefore(_ context.Context, threshold time.Time) ([]models.Conversation, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	expired := make([]models.Conversation, 0)
	for _, c := range d.convs {
		if c.LastMessageAt != nil && c.LastMessageAt.Before(threshold) {
			expired = append(expired, *c)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

func (s *memConversationStore) ListForUser(_ context.Context, userID int64) ([]models.Conversation, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Conversation, 0)
	for _, c := range d.convs {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memConversationStore) Delete(_ context.Context, conversationID int64) error {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.convs, conversationID)
	return nil
}

type memMessageStore struct{ db *memDB }

func (s *memMessageStore) Create(
	_ context.Context,
	conversationID, senderID, recipientID int64,
	contentType, content string,
) (*models.Message, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	d.msgSeq++
	m := models.Message{
		ID:             d.msgSeq,
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		ContentType:    contentType,
		Content:        content,
		CreatedAt:      d.now(),
	}
	d.msgs[conversationID] = append(d.msgs[conversationID], m)
	copied := m
	return &copied, nil
}

func (s *memMessageStore) ListVisible(
	_ context.Context,
	conversationID int64,
	after time.Time,
	cursor *time.Time,
	limit int,
) ([]models.Message, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range d.msgs[conversationID] {
		if !m.CreatedAt.After(after) {
			continue
		}
		if cursor != nil && !m.CreatedAt.Before(*cursor) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memMessageStore) ListBefore(_ context.Context, conversationID int64, cutoff time.Time) ([]models.Message, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range d.msgs[conversationID] {
		if m.CreatedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memMessageStore) ListByConversation(_ context.Context, conversationID int64) ([]models.Message, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Message, 0, len(d.msgs[conversationID]))
	out = append(out, d.msgs[conversationID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memMessageStore) DeleteBefore(_ context.Context, conversationID int64, cutoff time.Time) (int64, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := make([]models.Message, 0)
	var deleted int64
	for _, m := range d.msgs[conversationID] {
		if m.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	d.msgs[conversationID] = kept
	return deleted, nil
}

func (s *memMessageStore) DeleteByConversation(_ context.Context, conversationID int64) (int64, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	deleted := int64(len(d.msgs[conversationID]))
	delete(d.msgs, conversationID)
	return deleted, nil
}

type memUserStore struct{ db *memDB }

func (s *memUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) Delete(_ context.Context, id int64) error {
	d := s.db
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
	return nil
}

type emitCall struct {
	userID  int64
	channel string
	event   string
}

type stubPresence struct {
	mu    sync.Mutex
	chans map[int64]map[string]bool
}

func newStubPresence() *stubPresence {
	return &stubPresence{chans: make(map[int64]map[string]bool)}
}

// setPresent marks the user present on a channel; an empty channel marks
// generic presence (connected, no conversation open).
func (p *stubPresence) setPresent(userID int64, channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chans[userID] == nil {
		p.chans[userID] = make(map[string]bool)
	}
	p.chans[userID][channel] = true
}

func (p *stubPresence) IsPresent(userID int64, channel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.chans[userID]
	if channel == "" {
		return len(set) > 0
	}
	return set[channel]
}

type stubEmitter struct {
	mu    sync.Mutex
	calls []emitCall
}

func (e *stubEmitter) Emit(userID int64, channel, event string, _ any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, emitCall{userID: userID, channel: channel, event: event})
}

func (e *stubEmitter) eventsFor(userID int64) []emitCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]emitCall, 0)
	for _, call := range e.calls {
		if call.userID == userID {
			out = append(out, call)
		}
	}
	return out
}

type pushCall struct {
	userID int64
	title  string
	body   string
	data   map[string]string
}

type stubPush struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (p *stubPush) EnqueuePush(_ context.Context, userID int64, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, pushCall{userID: userID, title: title, body: body, data: data})
	return nil
}

type stubBlobStore struct {
	mu      sync.Mutex
	deleted []string
	failFor map[string]error
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{failFor: make(map[string]error)}
}

func (b *stubBlobStore) DeleteBlob(_ context.Context, reference string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failFor[reference]; ok {
		return err
	}
	b.deleted = append(b.deleted, reference)
	return nil
}
