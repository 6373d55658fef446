package chatsync

import (
	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
)

// DefaultPendingCap bounds how many distinct parent message ids the buffer
// holds children for. On overflow the buffer is reset wholesale, trading
// completeness for bounded memory.
const DefaultPendingCap = 200

// pendingChild is one buffered attachment or reaction event whose parent
// message was not locally known when it arrived. Exactly one field is set.
type pendingChild struct {
	attachment *domain.Attachment
	reaction   *domain.Reaction
}

// PendingBuffer holds attachment/reaction events until their parent message
// appears in the local store. The change stream guarantees ordering only
// within a table, so a child insert can be observed before its parent's
// insert; buffering makes delivery order irrelevant to final convergence.
type PendingBuffer struct {
	byParent map[uuid.UUID][]pendingChild
	cap      int
}

func NewPendingBuffer(capacity int) *PendingBuffer {
	if capacity <= 0 {
		capacity = DefaultPendingCap
	}
	return &PendingBuffer{
		byParent: make(map[uuid.UUID][]pendingChild),
		cap:      capacity,
	}
}

func (b *PendingBuffer) AddAttachment(a domain.Attachment) {
	b.add(a.MessageID, pendingChild{attachment: &a})
}

func (b *PendingBuffer) AddReaction(r domain.Reaction) {
	b.add(r.MessageID, pendingChild{reaction: &r})
}

func (b *PendingBuffer) add(parent uuid.UUID, child pendingChild) {
	if _, ok := b.byParent[parent]; !ok && len(b.byParent) >= b.cap {
		// Overflow: accepted lossy degradation.
		b.Clear()
	}
	b.byParent[parent] = append(b.byParent[parent], child)
}

// Drain applies and removes every buffered entry whose parent the store now
// knows. Application goes through the store's upserts, so duplicates (same
// user+emoji) collapse rather than append.
func (b *PendingBuffer) Drain(known func(uuid.UUID) bool, store *LocalStore) {
	for parent, children := range b.byParent {
		if !known(parent) {
			continue
		}
		for _, c := range children {
			switch {
			case c.attachment != nil:
				store.UpsertAttachment(*c.attachment)
			case c.reaction != nil:
				store.UpsertReaction(*c.reaction)
			}
		}
		delete(b.byParent, parent)
	}
}

func (b *PendingBuffer) Clear() {
	b.byParent = make(map[uuid.UUID][]pendingChild)
}

// Parents returns the number of distinct parent ids currently buffered.
func (b *PendingBuffer) Parents() int {
	return len(b.byParent)
}
