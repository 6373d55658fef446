package chatsync

import (
	"sort"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
)

// Retention caps. The store mirrors at most this many rows per collection;
// upserts beyond the cap evict from the stale end.
const (
	DefaultMessageCap = 250
	DefaultThreadCap  = 60
)

// LocalStore is the in-memory mirror of one channel's chat state. It is a
// plain data structure with no locking of its own; the engine serializes all
// access. Every mutation is an idempotent upsert or remove keyed by stable
// ids, so replaying an event is always harmless.
type LocalStore struct {
	messages     map[uuid.UUID]domain.Message
	messageOrder []uuid.UUID // ascending by creation time
	threads      map[uuid.UUID]domain.Thread
	threadOrder  []uuid.UUID // descending by creation time
	attachments  map[uuid.UUID][]domain.Attachment        // keyed by message id
	reactions    map[uuid.UUID]map[string]domain.Reaction // message id -> reaction key
	profiles     map[uuid.UUID]domain.ProfileSummary

	activeThread    uuid.NullUUID
	replyTarget     uuid.NullUUID
	selectedMessage uuid.NullUUID

	messageCap int
	threadCap  int
}

func NewLocalStore(messageCap, threadCap int) *LocalStore {
	if messageCap <= 0 {
		messageCap = DefaultMessageCap
	}
	if threadCap <= 0 {
		threadCap = DefaultThreadCap
	}
	s := &LocalStore{messageCap: messageCap, threadCap: threadCap}
	s.reset()
	return s
}

func (s *LocalStore) reset() {
	s.messages = make(map[uuid.UUID]domain.Message)
	s.messageOrder = nil
	s.threads = make(map[uuid.UUID]domain.Thread)
	s.threadOrder = nil
	s.attachments = make(map[uuid.UUID][]domain.Attachment)
	s.reactions = make(map[uuid.UUID]map[string]domain.Reaction)
	s.profiles = make(map[uuid.UUID]domain.ProfileSummary)
	s.replyTarget = uuid.NullUUID{}
	s.selectedMessage = uuid.NullUUID{}
}

// Replace swaps in a freshly loaded snapshot wholesale. The active thread
// selection survives only if the thread is present in the new set.
func (s *LocalStore) Replace(messages []domain.Message, threads []domain.Thread, attachments []domain.Attachment, reactions []domain.Reaction, profiles []domain.ProfileSummary) {
	prevActive := s.activeThread
	s.reset()
	for _, m := range messages {
		s.UpsertMessage(m)
	}
	for _, t := range threads {
		s.UpsertThread(t)
	}
	for _, a := range attachments {
		s.UpsertAttachment(a)
	}
	for _, r := range reactions {
		s.UpsertReaction(r)
	}
	for _, p := range profiles {
		s.UpsertProfile(p)
	}
	s.activeThread = uuid.NullUUID{}
	if prevActive.Valid {
		if _, ok := s.threads[prevActive.UUID]; ok {
			s.activeThread = prevActive
		}
	}
}

// --- Messages ---

// UpsertMessage inserts or replaces a message, re-sorts the collection and
// enforces the retention cap. Tombstoned rows are treated as removals.
// Returns the attachments dropped by eviction or tombstoning so the caller
// can evict cached media URLs.
func (s *LocalStore) UpsertMessage(m domain.Message) []domain.Attachment {
	if m.Tombstoned() {
		return s.RemoveMessage(m.ID)
	}
	if _, ok := s.messages[m.ID]; !ok {
		s.messageOrder = append(s.messageOrder, m.ID)
	}
	s.messages[m.ID] = m
	sort.SliceStable(s.messageOrder, func(i, j int) bool {
		a, b := s.messages[s.messageOrder[i]], s.messages[s.messageOrder[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID.String() < b.ID.String()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	var dropped []domain.Attachment
	for len(s.messageOrder) > s.messageCap {
		oldest := s.messageOrder[0]
		dropped = append(dropped, s.RemoveMessage(oldest)...)
	}
	return dropped
}

// RemoveMessage deletes a message and all of its dependents, clearing any
// reply-to or selected-message reference pointing at it. Returns the removed
// attachments.
func (s *LocalStore) RemoveMessage(id uuid.UUID) []domain.Attachment {
	removed := s.attachments[id]
	delete(s.messages, id)
	delete(s.attachments, id)
	delete(s.reactions, id)
	for i, mid := range s.messageOrder {
		if mid == id {
			s.messageOrder = append(s.messageOrder[:i], s.messageOrder[i+1:]...)
			break
		}
	}
	if s.replyTarget.Valid && s.replyTarget.UUID == id {
		s.replyTarget = uuid.NullUUID{}
	}
	if s.selectedMessage.Valid && s.selectedMessage.UUID == id {
		s.selectedMessage = uuid.NullUUID{}
	}
	return removed
}

func (s *LocalStore) Message(id uuid.UUID) (domain.Message, bool) {
	m, ok := s.messages[id]
	return m, ok
}

func (s *LocalStore) HasMessage(id uuid.UUID) bool {
	_, ok := s.messages[id]
	return ok
}

func (s *LocalStore) MessageIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.messageOrder))
	copy(ids, s.messageOrder)
	return ids
}

// VisibleMessages returns the ordered message list for the current thread
// selection: messages in the active thread, or main-stream messages (thread
// unset) when no thread is active.
func (s *LocalStore) VisibleMessages() []domain.Message {
	var out []domain.Message
	for _, id := range s.messageOrder {
		m := s.messages[id]
		if s.activeThread.Valid {
			if m.ThreadID.Valid && m.ThreadID.UUID == s.activeThread.UUID {
				out = append(out, m)
			}
		} else if !m.ThreadID.Valid {
			out = append(out, m)
		}
	}
	return out
}

// --- Threads ---

// UpsertThread inserts or replaces a thread. Archived rows are removals.
func (s *LocalStore) UpsertThread(t domain.Thread) {
	if t.Archived() {
		s.RemoveThread(t.ID)
		return
	}
	if _, ok := s.threads[t.ID]; !ok {
		s.threadOrder = append(s.threadOrder, t.ID)
	}
	s.threads[t.ID] = t
	sort.SliceStable(s.threadOrder, func(i, j int) bool {
		a, b := s.threads[s.threadOrder[i]], s.threads[s.threadOrder[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID.String() < b.ID.String()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	for len(s.threadOrder) > s.threadCap {
		stale := s.threadOrder[len(s.threadOrder)-1]
		s.RemoveThread(stale)
	}
}

// RemoveThread deletes a thread and clears the active-thread selection if it
// pointed there.
func (s *LocalStore) RemoveThread(id uuid.UUID) {
	delete(s.threads, id)
	for i, tid := range s.threadOrder {
		if tid == id {
			s.threadOrder = append(s.threadOrder[:i], s.threadOrder[i+1:]...)
			break
		}
	}
	if s.activeThread.Valid && s.activeThread.UUID == id {
		s.activeThread = uuid.NullUUID{}
	}
}

func (s *LocalStore) Thread(id uuid.UUID) (domain.Thread, bool) {
	t, ok := s.threads[id]
	return t, ok
}

func (s *LocalStore) Threads() []domain.Thread {
	out := make([]domain.Thread, 0, len(s.threadOrder))
	for _, id := range s.threadOrder {
		out = append(out, s.threads[id])
	}
	return out
}

// ThreadMessageCounts returns the number of locally known messages per
// thread.
func (s *LocalStore) ThreadMessageCounts() map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, id := range s.messageOrder {
		m := s.messages[id]
		if m.ThreadID.Valid {
			counts[m.ThreadID.UUID]++
		}
	}
	return counts
}

// --- Attachments ---

func (s *LocalStore) UpsertAttachment(a domain.Attachment) {
	list := s.attachments[a.MessageID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = a
			return
		}
	}
	s.attachments[a.MessageID] = append(list, a)
}

func (s *LocalStore) RemoveAttachment(messageID, attachmentID uuid.UUID) (domain.Attachment, bool) {
	list := s.attachments[messageID]
	for i := range list {
		if list[i].ID == attachmentID {
			removed := list[i]
			s.attachments[messageID] = append(list[:i], list[i+1:]...)
			return removed, true
		}
	}
	return domain.Attachment{}, false
}

func (s *LocalStore) Attachments(messageID uuid.UUID) []domain.Attachment {
	return s.attachments[messageID]
}

// --- Reactions ---

// UpsertReaction is idempotent on the (message, user, emoji) identity.
func (s *LocalStore) UpsertReaction(r domain.Reaction) {
	byKey := s.reactions[r.MessageID]
	if byKey == nil {
		byKey = make(map[string]domain.Reaction)
		s.reactions[r.MessageID] = byKey
	}
	byKey[r.Key()] = r
}

func (s *LocalStore) RemoveReaction(messageID, userID uuid.UUID, emoji string) {
	byKey := s.reactions[messageID]
	if byKey == nil {
		return
	}
	delete(byKey, domain.Reaction{UserID: userID, Emoji: emoji}.Key())
	if len(byKey) == 0 {
		delete(s.reactions, messageID)
	}
}

func (s *LocalStore) HasReaction(messageID, userID uuid.UUID, emoji string) bool {
	byKey := s.reactions[messageID]
	if byKey == nil {
		return false
	}
	_, ok := byKey[domain.Reaction{UserID: userID, Emoji: emoji}.Key()]
	return ok
}

// ReactionCount is one emoji's tally on a message.
type ReactionCount struct {
	Emoji string
	Count int
	Mine  bool
}

// ReactionTally groups a message's reactions by emoji, flagging whether the
// given user is among the reactors. Sorted by emoji for stable rendering.
func (s *LocalStore) ReactionTally(messageID, me uuid.UUID) []ReactionCount {
	byKey := s.reactions[messageID]
	if len(byKey) == 0 {
		return nil
	}
	byEmoji := make(map[string]*ReactionCount)
	for _, r := range byKey {
		rc := byEmoji[r.Emoji]
		if rc == nil {
			rc = &ReactionCount{Emoji: r.Emoji}
			byEmoji[r.Emoji] = rc
		}
		rc.Count++
		if r.UserID == me {
			rc.Mine = true
		}
	}
	out := make([]ReactionCount, 0, len(byEmoji))
	for _, rc := range byEmoji {
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Emoji < out[j].Emoji })
	return out
}

// --- Profiles ---

func (s *LocalStore) UpsertProfile(p domain.ProfileSummary) {
	s.profiles[p.ID] = p
}

func (s *LocalStore) Profile(id uuid.UUID) (domain.ProfileSummary, bool) {
	p, ok := s.profiles[id]
	return p, ok
}

// --- Selection state ---

func (s *LocalStore) ActiveThread() uuid.NullUUID {
	return s.activeThread
}

// SetActiveThread selects a thread (or the main stream when id is the null
// uuid). Selecting an unknown thread is a no-op.
func (s *LocalStore) SetActiveThread(id uuid.NullUUID) {
	if id.Valid {
		if _, ok := s.threads[id.UUID]; !ok {
			return
		}
	}
	s.activeThread = id
}

func (s *LocalStore) ReplyTarget() uuid.NullUUID {
	return s.replyTarget
}

func (s *LocalStore) SetReplyTarget(id uuid.NullUUID) {
	if id.Valid && !s.HasMessage(id.UUID) {
		return
	}
	s.replyTarget = id
}

func (s *LocalStore) SelectedMessage() uuid.NullUUID {
	return s.selectedMessage
}

func (s *LocalStore) SetSelectedMessage(id uuid.NullUUID) {
	if id.Valid && !s.HasMessage(id.UUID) {
		return
	}
	s.selectedMessage = id
}
