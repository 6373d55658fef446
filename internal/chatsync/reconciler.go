package chatsync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/realtime"
)

// handleStreamEvent applies one inbound change event. Malformed or dangling
// events are logged and skipped; nothing on this path ever raises to the UI.
func (e *Engine) handleStreamEvent(gen uint64, topic string, payload []byte) {
	if strings.HasPrefix(topic, "events-") {
		// City events reload wholesale instead of merging incrementally.
		if e.cfg.OnCityEvents != nil {
			e.cfg.OnCityEvents()
		}
		return
	}

	ev, err := realtime.DecodeEvent(payload)
	if err != nil {
		e.log.Warnf("skipping malformed change event on %s: %v", topic, err)
		return
	}

	switch ev.Table {
	case realtime.TableMessages:
		e.applyMessageEvent(gen, ev)
	case realtime.TableThreads:
		e.applyThreadEvent(gen, ev)
	case realtime.TableAttachments:
		e.applyAttachmentEvent(gen, ev)
	case realtime.TableReactions:
		e.applyReactionEvent(gen, ev)
	case realtime.TableEvents, realtime.TableAttendees:
		if e.cfg.OnCityEvents != nil {
			e.cfg.OnCityEvents()
		}
	default:
		e.log.Warnf("skipping change event for unknown table %q", ev.Table)
	}
}

func (e *Engine) applyMessageEvent(gen uint64, ev realtime.ChangeEvent) {
	m, err := ev.Message()
	if err != nil {
		e.log.Warnf("skipping message event: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return
	}
	if e.channel == nil || m.ChannelID != e.channel.ID {
		// Topic leakage across a channel transition; never mutate the
		// current channel's state with another channel's rows.
		return
	}

	if ev.Op == realtime.OpDelete || m.Tombstoned() {
		for _, a := range e.local.RemoveMessage(m.ID) {
			e.evictMediaLocked(a)
		}
		return
	}

	// Cap eviction inside the upsert can drop older attachments; their
	// signed URLs go with them.
	for _, dropped := range e.local.UpsertMessage(m) {
		e.evictMediaLocked(dropped)
	}
	e.pending.Drain(e.local.HasMessage, e.local)

	if _, ok := e.local.Profile(m.SenderID); !ok {
		go e.fetchProfile(gen, m.SenderID)
	}

	// A media message can outrun its attachment rows, or the attachment
	// event can be dropped entirely. Check back after a debounce and fetch
	// the children directly if they never arrived.
	if ev.Op == realtime.OpInsert && m.HasMedia() && len(e.local.Attachments(m.ID)) == 0 {
		e.after(e.cfg.HydrationDelay, func() { e.hydrate(gen, m.ID) })
	}
}

func (e *Engine) applyThreadEvent(gen uint64, ev realtime.ChangeEvent) {
	t, err := ev.Thread()
	if err != nil {
		e.log.Warnf("skipping thread event: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return
	}
	if e.channel == nil || t.ChannelID != e.channel.ID {
		return
	}

	if ev.Op == realtime.OpDelete || t.Archived() {
		e.local.RemoveThread(t.ID)
		return
	}

	e.local.UpsertThread(t)
	if _, ok := e.local.Profile(t.CreatorID); !ok {
		go e.fetchProfile(gen, t.CreatorID)
	}
}

func (e *Engine) applyAttachmentEvent(gen uint64, ev realtime.ChangeEvent) {
	a, err := ev.Attachment()
	if err != nil {
		e.log.Warnf("skipping attachment event: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return
	}

	if ev.Op == realtime.OpDelete {
		if removed, ok := e.local.RemoveAttachment(a.MessageID, a.ID); ok {
			e.evictMediaLocked(removed)
		}
		return
	}

	if e.local.HasMessage(a.MessageID) {
		e.local.UpsertAttachment(a)
		return
	}
	// Parent not yet known: buffer and replay once the message arrives.
	e.pending.AddAttachment(a)
}

func (e *Engine) applyReactionEvent(gen uint64, ev realtime.ChangeEvent) {
	r, err := ev.Reaction()
	if err != nil {
		e.log.Warnf("skipping reaction event: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return
	}

	if ev.Op == realtime.OpDelete {
		// Deletes for unknown parents are dropped; nothing to remove.
		e.local.RemoveReaction(r.MessageID, r.UserID, r.Emoji)
		return
	}

	if e.local.HasMessage(r.MessageID) {
		e.local.UpsertReaction(r)
		if _, ok := e.local.Profile(r.UserID); !ok {
			go e.fetchProfile(gen, r.UserID)
		}
		return
	}
	e.pending.AddReaction(r)
}

// hydrate runs after the debounce delay: if the message is still known and
// still has no attachments, fetch its children directly by id.
func (e *Engine) hydrate(gen uint64, messageID uuid.UUID) {
	e.mu.Lock()
	if e.stale(gen) || !e.local.HasMessage(messageID) || len(e.local.Attachments(messageID)) > 0 {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	attachments, reactions, err := e.cfg.Remote.MessageChildren(ctx, messageID)
	if err != nil {
		e.log.Warnf("hydration fetch for message %s failed: %v", messageID, err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) || !e.local.HasMessage(messageID) {
		return
	}
	for _, a := range attachments {
		e.local.UpsertAttachment(a)
	}
	for _, r := range reactions {
		e.local.UpsertReaction(r)
	}
}

// fetchProfile backfills a sender/creator/reactor profile summary the store
// has not seen yet.
func (e *Engine) fetchProfile(gen uint64, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := e.cfg.Remote.GetProfile(ctx, userID)
	if err != nil {
		e.log.Warnf("profile fetch for %s failed: %v", userID, err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return
	}
	e.local.UpsertProfile(p)
}

// evictMediaLocked drops the cached signed URL for a removed chat-media
// attachment. Callers must hold e.mu.
func (e *Engine) evictMediaLocked(a domain.Attachment) {
	if e.cfg.Blobs != nil && a.Bucket == e.cfg.Blobs.Bucket() {
		e.media.Evict(a.StoragePath)
	}
}
