package chatsync

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/realtime"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/store"
	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
)

var errFakeNetwork = errors.New("fake network failure")

// fakeRemote is an in-memory RemoteStore with per-method error injection and
// call counting.
type fakeRemote struct {
	mu sync.Mutex

	messages    []domain.Message
	threads     []domain.Thread
	attachments []domain.Attachment
	reactions   []domain.Reaction
	profiles    map[uuid.UUID]domain.ProfileSummary

	failListMessages   bool
	failInsertReaction bool
	failDeleteReaction bool
	failDeleteMessage  bool

	listMessagesCalls   int
	insertedReactions   []domain.Reaction
	deletedReactions    []domain.Reaction
	insertedAttachments []domain.Attachment
	deletedMessages     []uuid.UUID
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{profiles: make(map[uuid.UUID]domain.ProfileSummary)}
}

func (f *fakeRemote) ListMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listMessagesCalls++
	if f.failListMessages {
		return nil, errFakeNetwork
	}
	var out []domain.Message
	for _, m := range f.messages {
		if m.ChannelID == channelID && !m.Tombstoned() {
			out = append(out, m)
		}
	}
	if len(out) > limit && limit > 0 {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRemote) ListThreads(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Thread
	for _, t := range f.threads {
		if t.ChannelID == channelID && !t.Archived() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListAttachments(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = true
	}
	var out []domain.Attachment
	for _, a := range f.attachments {
		if ids[a.MessageID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListReactions(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = true
	}
	var out []domain.Reaction
	for _, r := range f.reactions {
		if ids[r.MessageID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListProfiles(ctx context.Context, userIDs []uuid.UUID) ([]domain.ProfileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ProfileSummary
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRemote) GetProfile(ctx context.Context, userID uuid.UUID) (domain.ProfileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return domain.ProfileSummary{}, shrubbi_errors.ErrNotFound
}

func (f *fakeRemote) MessageChildren(ctx context.Context, messageID uuid.UUID) ([]domain.Attachment, []domain.Reaction, error) {
	attachments, _ := f.ListAttachments(ctx, []uuid.UUID{messageID})
	reactions, _ := f.ListReactions(ctx, []uuid.UUID{messageID})
	return attachments, reactions, nil
}

func (f *fakeRemote) InsertReaction(ctx context.Context, r domain.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertReaction {
		return errFakeNetwork
	}
	f.insertedReactions = append(f.insertedReactions, r)
	return nil
}

func (f *fakeRemote) DeleteReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeleteReaction {
		return errFakeNetwork
	}
	f.deletedReactions = append(f.deletedReactions, domain.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji})
	return nil
}

func (f *fakeRemote) InsertAttachment(ctx context.Context, a domain.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertedAttachments = append(f.insertedAttachments, a)
	return nil
}

func (f *fakeRemote) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeleteMessage {
		return errFakeNetwork
	}
	f.deletedMessages = append(f.deletedMessages, messageID)
	return nil
}

// fakeRPC returns preset ids and records inputs.
type fakeRPC struct {
	mu          sync.Mutex
	nextMessage uuid.UUID
	nextThread  uuid.UUID
	sendInputs  []store.SendMessageInput
	failSend    bool
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{nextMessage: uuid.New(), nextThread: uuid.New()}
}

func (f *fakeRPC) SendMessage(ctx context.Context, in store.SendMessageInput) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return uuid.Nil, errFakeNetwork
	}
	f.sendInputs = append(f.sendInputs, in)
	return f.nextMessage, nil
}

func (f *fakeRPC) CreateThread(ctx context.Context, in store.CreateThreadInput) (store.CreateThreadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.CreateThreadResult{ThreadID: f.nextThread, RootMessageID: f.nextMessage}, nil
}

const fakeBucket = "chat-media"

// fakeBlobs signs deterministically and records uploads/deletes.
type fakeBlobs struct {
	mu       sync.Mutex
	uploads  []string
	deletes  []string
	failSign bool
	signs    int
}

func (f *fakeBlobs) Bucket() string { return fakeBucket }

func (f *fakeBlobs) SignGet(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSign {
		return "", errFakeNetwork
	}
	f.signs++
	return "https://signed.example/" + path, nil
}

func (f *fakeBlobs) SignGetBatch(ctx context.Context, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		u, err := f.SignGet(ctx, p)
		if err != nil {
			return nil, err
		}
		out[p] = u
	}
	return out, nil
}

func (f *fakeBlobs) Upload(ctx context.Context, path, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	return nil
}

func (f *fakeBlobs) Delete(ctx context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, paths...)
	return nil
}

// fakeSubscriber records topic churn and lets tests push events by hand.
type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]realtime.Handler
	subscribed   []string
	unsubscribed []string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]realtime.Handler)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, topic string, handler realtime.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeSubscriber) Close() error { return nil }

// Emit delivers a payload to the handler currently registered for the topic.
func (f *fakeSubscriber) Emit(topic string, payload []byte) {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}
