package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/realtime"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/store"
	"github.com/PouplarWesel/Shrubbi-sub000/pkg/logger"
)

// DefaultHydrationDelay is how long the reconciler waits after a media
// message insert before checking whether its attachment rows ever arrived.
const DefaultHydrationDelay = 650 * time.Millisecond

// URLSigner mints time-limited signed read URLs for blob storage paths.
type URLSigner interface {
	Bucket() string
	SignGet(ctx context.Context, path string) (string, error)
	SignGetBatch(ctx context.Context, paths []string) (map[string]string, error)
}

// BlobStore extends signing with the writes the optimistic send/delete paths
// need.
type BlobStore interface {
	URLSigner
	Upload(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, paths ...string) error
}

// Config wires the engine's collaborators. Remote, RPC and Blobs are
// interfaces so tests can substitute fakes for the whole transport.
type Config struct {
	Remote     store.RemoteStore
	RPC        store.RPC
	Blobs      BlobStore
	Subscriber realtime.Subscriber
	Logger     *logger.Logger

	UserID uuid.UUID
	CityID uuid.UUID

	MessageCap     int
	ThreadCap      int
	PendingCap     int
	HydrationDelay time.Duration

	// ShowDeletedReplyPlaceholder controls what ReplyPreview reports for a
	// reply whose target has since been deleted: a placeholder entry (true)
	// or no preview at all (false). A product choice, not a correctness one.
	ShowDeletedReplyPlaceholder bool

	// OnCityEvents fires whenever an event/attendee change arrives on the
	// city topic. The events surface reloads wholesale rather than merging
	// incrementally, so the engine only signals.
	OnCityEvents func()
}

// Engine keeps the in-memory view of one channel's messages, threads,
// attachments and reactions converged with the server-pushed change stream,
// while supporting optimistic local writes and reconnect snapshots.
//
// All state is guarded by one mutex; the generation counter is bumped on
// every channel switch and every asynchronous completion re-checks it before
// mutating, so completions that outlive their channel are discarded.
type Engine struct {
	cfg Config
	log *logger.Logger

	mu         sync.Mutex
	local      *LocalStore
	pending    *PendingBuffer
	media      *MediaURLCache
	channel    *domain.Channel
	generation uint64

	subscribed []string

	// injectable clocks for tests
	now   func() time.Time
	after func(d time.Duration, f func())
}

func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.HydrationDelay <= 0 {
		cfg.HydrationDelay = DefaultHydrationDelay
	}
	return &Engine{
		cfg:     cfg,
		log:     cfg.Logger,
		local:   NewLocalStore(cfg.MessageCap, cfg.ThreadCap),
		pending: NewPendingBuffer(cfg.PendingCap),
		media:   NewMediaURLCache(),
		now:     time.Now,
		after:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Channel returns the currently selected channel, or nil.
func (e *Engine) Channel() *domain.Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel
}

// SwitchChannel tears down the old channel's subscriptions, clears the
// pending buffer and loads a fresh snapshot for the new channel. Passing nil
// clears all state. Unsubscription completes before the new load begins so
// late events for the old channel cannot leak into the new view.
func (e *Engine) SwitchChannel(ctx context.Context, ch *domain.Channel) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	old := e.subscribed
	e.subscribed = nil
	e.channel = ch
	e.pending.Clear()
	if ch == nil {
		e.local = NewLocalStore(e.cfg.MessageCap, e.cfg.ThreadCap)
		e.media = NewMediaURLCache()
	}
	e.mu.Unlock()

	if e.cfg.Subscriber != nil {
		for _, topic := range old {
			if err := e.cfg.Subscriber.Unsubscribe(ctx, topic); err != nil {
				e.log.Warnf("unsubscribe %s: %v", topic, err)
			}
		}
	}
	if ch == nil {
		return nil
	}

	if e.cfg.Subscriber != nil {
		topics := []string{realtime.ChannelTopic(ch.ID)}
		if e.cfg.CityID != uuid.Nil {
			topics = append(topics, realtime.CityTopic(e.cfg.CityID))
		}
		for _, topic := range topics {
			handler := e.streamHandler(gen)
			if err := e.cfg.Subscriber.Subscribe(ctx, topic, handler); err != nil {
				return err
			}
		}
		e.mu.Lock()
		if gen == e.generation {
			e.subscribed = topics
		}
		e.mu.Unlock()
	}

	return e.loadSnapshot(ctx, gen, ch.ID)
}

// Refresh re-runs the snapshot load for the current channel.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	ch := e.channel
	gen := e.generation
	e.mu.Unlock()
	if ch == nil {
		return nil
	}
	return e.loadSnapshot(ctx, gen, ch.ID)
}

// streamHandler binds a subscription callback to the generation it was
// created under.
func (e *Engine) streamHandler(gen uint64) realtime.Handler {
	return func(topic string, payload []byte) {
		e.handleStreamEvent(gen, topic, payload)
	}
}

// stale reports whether a completion belongs to a superseded channel
// selection. Callers must hold e.mu.
func (e *Engine) stale(gen uint64) bool {
	return gen != e.generation
}

// --- Views ---

// VisibleMessages returns the ordered messages for the current thread
// selection.
func (e *Engine) VisibleMessages() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.VisibleMessages()
}

func (e *Engine) Threads() []domain.Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.Threads()
}

func (e *Engine) ThreadMessageCounts() map[uuid.UUID]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.ThreadMessageCounts()
}

func (e *Engine) Attachments(messageID uuid.UUID) []domain.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.local.Attachments(messageID)
	out := make([]domain.Attachment, len(list))
	copy(out, list)
	return out
}

// ReactionTally groups a message's reactions by emoji, flagging the current
// user's own.
func (e *Engine) ReactionTally(messageID uuid.UUID) []ReactionCount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.ReactionTally(messageID, e.cfg.UserID)
}

func (e *Engine) Profile(id uuid.UUID) (domain.ProfileSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.Profile(id)
}

func (e *Engine) ActiveThread() uuid.NullUUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.ActiveThread()
}

func (e *Engine) SetActiveThread(id uuid.NullUUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.SetActiveThread(id)
}

func (e *Engine) SetReplyTarget(id uuid.NullUUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.SetReplyTarget(id)
}

func (e *Engine) ReplyTarget() uuid.NullUUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.ReplyTarget()
}

func (e *Engine) SetSelectedMessage(id uuid.NullUUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.SetSelectedMessage(id)
}

func (e *Engine) SelectedMessage() uuid.NullUUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.SelectedMessage()
}

// ReplyPreview resolves a message's reply target one hop, never recursing
// into the target's own reply chain. For a dangling target the result depends
// on ShowDeletedReplyPlaceholder.
type ReplyPreview struct {
	Message     domain.Message
	Placeholder bool
}

func (e *Engine) ReplyPreview(messageID uuid.UUID) (ReplyPreview, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.local.Message(messageID)
	if !ok || !m.ReplyToID.Valid {
		return ReplyPreview{}, false
	}
	target, ok := e.local.Message(m.ReplyToID.UUID)
	if ok && !target.Tombstoned() {
		return ReplyPreview{Message: target}, true
	}
	if e.cfg.ShowDeletedReplyPlaceholder {
		return ReplyPreview{Placeholder: true}, true
	}
	return ReplyPreview{}, false
}

// AttachmentURL returns the signed read URL for a chat-media attachment,
// signing lazily on a cache miss. Attachments in other buckets have no signed
// URL.
func (e *Engine) AttachmentURL(ctx context.Context, a domain.Attachment) (string, error) {
	if e.cfg.Blobs == nil || a.Bucket != e.cfg.Blobs.Bucket() {
		return "", nil
	}
	e.mu.Lock()
	if u, ok := e.media.Get(a.StoragePath); ok {
		e.mu.Unlock()
		return u, nil
	}
	gen := e.generation
	e.mu.Unlock()

	u, err := e.cfg.Blobs.SignGet(ctx, a.StoragePath)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if !e.stale(gen) {
		e.media.Put(a.StoragePath, u)
	}
	e.mu.Unlock()
	return u, nil
}
