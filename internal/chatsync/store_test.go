package chatsync

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
)

func textMessage(channelID uuid.UUID, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		SenderID:  uuid.New(),
		Kind:      domain.KindText,
		Body:      "hi",
		CreatedAt: at,
	}
}

func TestUpsertMessageIsIdempotent(t *testing.T) {
	s := NewLocalStore(0, 0)
	m := textMessage(uuid.New(), time.Now())

	s.UpsertMessage(m)
	s.UpsertMessage(m)

	if got := len(s.MessageIDs()); got != 1 {
		t.Fatalf("expected 1 message after duplicate upsert, got %d", got)
	}
}

func TestUpsertMessageKeepsAscendingOrder(t *testing.T) {
	s := NewLocalStore(0, 0)
	base := time.Now()
	ch := uuid.New()
	later := textMessage(ch, base.Add(time.Minute))
	earlier := textMessage(ch, base)

	s.UpsertMessage(later)
	s.UpsertMessage(earlier)

	visible := s.VisibleMessages()
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible messages, got %d", len(visible))
	}
	if visible[0].ID != earlier.ID || visible[1].ID != later.ID {
		t.Fatalf("messages not in ascending creation order")
	}
}

func TestRetentionCapKeepsMostRecent(t *testing.T) {
	s := NewLocalStore(250, 0)
	base := time.Now()
	ch := uuid.New()

	var all []domain.Message
	for i := 0; i < 300; i++ {
		m := textMessage(ch, base.Add(time.Duration(i)*time.Second))
		all = append(all, m)
		s.UpsertMessage(m)
	}

	ids := s.MessageIDs()
	if len(ids) != 250 {
		t.Fatalf("expected 250 retained messages, got %d", len(ids))
	}
	// The survivors must be the 250 most recent, still ascending.
	for i, id := range ids {
		if want := all[50+i].ID; id != want {
			t.Fatalf("retained message %d = %s, want %s", i, id, want)
		}
	}
}

func TestThreadCapEvictsOldest(t *testing.T) {
	s := NewLocalStore(0, 60)
	base := time.Now()
	ch := uuid.New()
	for i := 0; i < 70; i++ {
		s.UpsertThread(domain.Thread{
			ID:        uuid.New(),
			ChannelID: ch,
			CreatorID: uuid.New(),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	threads := s.Threads()
	if len(threads) != 60 {
		t.Fatalf("expected 60 retained threads, got %d", len(threads))
	}
	// Descending order: newest first, and the 10 oldest gone.
	for i := 1; i < len(threads); i++ {
		if threads[i].CreatedAt.After(threads[i-1].CreatedAt) {
			t.Fatalf("threads not in descending creation order")
		}
	}
	if threads[len(threads)-1].CreatedAt.Before(base.Add(9 * time.Second)) {
		t.Fatalf("oldest threads were not evicted")
	}
}

func TestRemoveMessageCascades(t *testing.T) {
	s := NewLocalStore(0, 0)
	m := textMessage(uuid.New(), time.Now())
	s.UpsertMessage(m)

	att := domain.Attachment{ID: uuid.New(), MessageID: m.ID, Bucket: "chat-media", StoragePath: "p"}
	s.UpsertAttachment(att)
	s.UpsertReaction(domain.Reaction{MessageID: m.ID, UserID: uuid.New(), Emoji: "🌱"})
	s.SetReplyTarget(uuid.NullUUID{UUID: m.ID, Valid: true})
	s.SetSelectedMessage(uuid.NullUUID{UUID: m.ID, Valid: true})

	removed := s.RemoveMessage(m.ID)

	if len(removed) != 1 || removed[0].ID != att.ID {
		t.Fatalf("expected removed attachment to be returned")
	}
	if s.HasMessage(m.ID) {
		t.Fatalf("message still present")
	}
	if len(s.Attachments(m.ID)) != 0 {
		t.Fatalf("attachments not removed")
	}
	if tally := s.ReactionTally(m.ID, uuid.Nil); tally != nil {
		t.Fatalf("reactions not removed")
	}
	if s.ReplyTarget().Valid {
		t.Fatalf("reply target not cleared")
	}
	if s.SelectedMessage().Valid {
		t.Fatalf("selected message not cleared")
	}
}

func TestTombstonedUpsertActsAsRemoval(t *testing.T) {
	s := NewLocalStore(0, 0)
	m := textMessage(uuid.New(), time.Now())
	s.UpsertMessage(m)

	now := time.Now()
	m.DeletedAt = &now
	s.UpsertMessage(m)

	if s.HasMessage(m.ID) {
		t.Fatalf("tombstoned message should be removed")
	}
}

func TestVisibleMessagesFollowsThreadSelection(t *testing.T) {
	s := NewLocalStore(0, 0)
	ch := uuid.New()
	base := time.Now()

	thread := domain.Thread{ID: uuid.New(), ChannelID: ch, CreatorID: uuid.New(), CreatedAt: base}
	s.UpsertThread(thread)

	main := textMessage(ch, base)
	threaded := textMessage(ch, base.Add(time.Second))
	threaded.ThreadID = uuid.NullUUID{UUID: thread.ID, Valid: true}
	s.UpsertMessage(main)
	s.UpsertMessage(threaded)

	visible := s.VisibleMessages()
	if len(visible) != 1 || visible[0].ID != main.ID {
		t.Fatalf("main stream should only show thread-less messages")
	}

	s.SetActiveThread(uuid.NullUUID{UUID: thread.ID, Valid: true})
	visible = s.VisibleMessages()
	if len(visible) != 1 || visible[0].ID != threaded.ID {
		t.Fatalf("active thread should only show its own messages")
	}
}

func TestRemoveThreadClearsActiveSelection(t *testing.T) {
	s := NewLocalStore(0, 0)
	thread := domain.Thread{ID: uuid.New(), ChannelID: uuid.New(), CreatorID: uuid.New(), CreatedAt: time.Now()}
	s.UpsertThread(thread)
	s.SetActiveThread(uuid.NullUUID{UUID: thread.ID, Valid: true})

	s.RemoveThread(thread.ID)

	if s.ActiveThread().Valid {
		t.Fatalf("active thread not cleared on removal")
	}
}

func TestThreadMessageCounts(t *testing.T) {
	s := NewLocalStore(0, 0)
	ch := uuid.New()
	base := time.Now()
	thread := domain.Thread{ID: uuid.New(), ChannelID: ch, CreatorID: uuid.New(), CreatedAt: base}
	s.UpsertThread(thread)

	for i := 0; i < 3; i++ {
		m := textMessage(ch, base.Add(time.Duration(i)*time.Second))
		m.ThreadID = uuid.NullUUID{UUID: thread.ID, Valid: true}
		s.UpsertMessage(m)
	}
	s.UpsertMessage(textMessage(ch, base.Add(time.Minute)))

	counts := s.ThreadMessageCounts()
	if counts[thread.ID] != 3 {
		t.Fatalf("expected 3 messages in thread, got %d", counts[thread.ID])
	}
}

func TestReactionTallyGroupsAndFlagsOwn(t *testing.T) {
	s := NewLocalStore(0, 0)
	m := textMessage(uuid.New(), time.Now())
	s.UpsertMessage(m)

	me := uuid.New()
	other := uuid.New()
	s.UpsertReaction(domain.Reaction{MessageID: m.ID, UserID: me, Emoji: "🌱"})
	s.UpsertReaction(domain.Reaction{MessageID: m.ID, UserID: other, Emoji: "🌱"})
	s.UpsertReaction(domain.Reaction{MessageID: m.ID, UserID: other, Emoji: "🔥"})
	// Duplicate upsert of the same identity must not inflate the count.
	s.UpsertReaction(domain.Reaction{MessageID: m.ID, UserID: me, Emoji: "🌱"})

	tally := s.ReactionTally(m.ID, me)
	if len(tally) != 2 {
		t.Fatalf("expected 2 emoji groups, got %d", len(tally))
	}
	for _, rc := range tally {
		switch rc.Emoji {
		case "🌱":
			if rc.Count != 2 || !rc.Mine {
				t.Fatalf("🌱 tally wrong: %+v", rc)
			}
		case "🔥":
			if rc.Count != 1 || rc.Mine {
				t.Fatalf("🔥 tally wrong: %+v", rc)
			}
		}
	}
}

func TestReplaceResetsActiveThreadWhenGone(t *testing.T) {
	s := NewLocalStore(0, 0)
	old := domain.Thread{ID: uuid.New(), ChannelID: uuid.New(), CreatorID: uuid.New(), CreatedAt: time.Now()}
	s.UpsertThread(old)
	s.SetActiveThread(uuid.NullUUID{UUID: old.ID, Valid: true})

	fresh := domain.Thread{ID: uuid.New(), ChannelID: old.ChannelID, CreatorID: uuid.New(), CreatedAt: time.Now()}
	s.Replace(nil, []domain.Thread{fresh}, nil, nil, nil)

	if s.ActiveThread().Valid {
		t.Fatalf("active thread should reset when missing from snapshot")
	}

	// And survive when still present.
	s.SetActiveThread(uuid.NullUUID{UUID: fresh.ID, Valid: true})
	s.Replace(nil, []domain.Thread{fresh}, nil, nil, nil)
	if !s.ActiveThread().Valid || s.ActiveThread().UUID != fresh.ID {
		t.Fatalf("active thread should survive when still in snapshot")
	}
}
