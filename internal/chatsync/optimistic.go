package chatsync

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/blob"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/store"
	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
)

// ToggleReaction adds or removes the current user's reaction locally before
// the network call resolves. On failure the local mutation is inverted and
// the error returned; a later authoritative event converges state either way
// because store merges are idempotent.
func (e *Engine) ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	emoji, err := domain.NormalizeEmoji(emoji)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if !e.local.HasMessage(messageID) {
		e.mu.Unlock()
		return shrubbi_errors.ErrNotFound
	}
	gen := e.generation
	had := e.local.HasReaction(messageID, e.cfg.UserID, emoji)
	reaction := domain.Reaction{
		MessageID: messageID,
		UserID:    e.cfg.UserID,
		Emoji:     emoji,
		CreatedAt: e.now(),
	}
	if had {
		e.local.RemoveReaction(messageID, e.cfg.UserID, emoji)
	} else {
		e.local.UpsertReaction(reaction)
	}
	e.mu.Unlock()

	if had {
		err = e.cfg.Remote.DeleteReaction(ctx, messageID, e.cfg.UserID, emoji)
	} else {
		err = e.cfg.Remote.InsertReaction(ctx, reaction)
	}
	if err == nil {
		return nil
	}

	// Roll back to the exact prior state.
	e.mu.Lock()
	if !e.stale(gen) {
		if had {
			e.local.UpsertReaction(reaction)
		} else {
			e.local.RemoveReaction(messageID, e.cfg.UserID, emoji)
		}
	}
	e.mu.Unlock()
	return err
}

// SendText sends a plain-text message through the compound-write RPC, then
// immediately mirrors it locally under the server-generated id so the sender
// sees it without waiting for the change-event round trip.
func (e *Engine) SendText(ctx context.Context, body string, threadID, replyToID *uuid.UUID) (uuid.UUID, error) {
	if strings.TrimSpace(body) == "" {
		return uuid.Nil, shrubbi_errors.ErrBlankBody
	}
	return e.send(ctx, store.SendMessageInput{
		Body:      body,
		Kind:      domain.KindText,
		ThreadID:  threadID,
		ReplyToID: replyToID,
	})
}

// SendGif sends a gif-kind message whose media lives at an external URL
// carried in metadata.
func (e *Engine) SendGif(ctx context.Context, gifURL, sourceURL string, threadID *uuid.UUID) (uuid.UUID, error) {
	if strings.TrimSpace(gifURL) == "" {
		return uuid.Nil, shrubbi_errors.ErrInvalidInput
	}
	meta := map[string]any{domain.MetaGifURL: gifURL}
	if sourceURL != "" {
		meta[domain.MetaSourceURL] = sourceURL
	}
	return e.send(ctx, store.SendMessageInput{
		Kind:     domain.KindGif,
		ThreadID: threadID,
		Metadata: meta,
	})
}

func (e *Engine) send(ctx context.Context, in store.SendMessageInput) (uuid.UUID, error) {
	e.mu.Lock()
	ch := e.channel
	if ch == nil {
		e.mu.Unlock()
		return uuid.Nil, shrubbi_errors.ErrNoChannel
	}
	gen := e.generation
	in.ChannelID = ch.ID

	// Reply threading: the target must live in this channel, and if it sits
	// in a thread the reply lands there too, even when the caller passed no
	// thread.
	if in.ReplyToID != nil {
		if target, ok := e.local.Message(*in.ReplyToID); ok {
			if target.ChannelID != ch.ID {
				e.mu.Unlock()
				return uuid.Nil, shrubbi_errors.ErrCrossChannelReply
			}
			if in.ThreadID == nil && target.ThreadID.Valid {
				tid := target.ThreadID.UUID
				in.ThreadID = &tid
			}
		}
	}
	e.mu.Unlock()

	id, err := e.cfg.RPC.SendMessage(ctx, in)
	if err != nil {
		return uuid.Nil, err
	}

	msg := domain.Message{
		ID:        id,
		ChannelID: in.ChannelID,
		SenderID:  e.cfg.UserID,
		Kind:      in.Kind,
		Body:      in.Body,
		Metadata:  in.Metadata,
		CreatedAt: e.now(),
	}
	if in.ThreadID != nil {
		msg.ThreadID = uuid.NullUUID{UUID: *in.ThreadID, Valid: true}
	}
	if in.ReplyToID != nil {
		msg.ReplyToID = uuid.NullUUID{UUID: *in.ReplyToID, Valid: true}
	}

	e.mu.Lock()
	if !e.stale(gen) {
		for _, dropped := range e.local.UpsertMessage(msg) {
			e.evictMediaLocked(dropped)
		}
		e.pending.Drain(e.local.HasMessage, e.local)
	}
	e.mu.Unlock()
	return id, nil
}

// SendMedia uploads a blob to the chat-media bucket, sends the message
// through the RPC, records the attachment row and mirrors both locally.
func (e *Engine) SendMedia(ctx context.Context, data []byte, mimeType, ext string, width, height *int, threadID *uuid.UUID) (uuid.UUID, error) {
	if e.cfg.Blobs == nil {
		return uuid.Nil, shrubbi_errors.ErrInvalidInput
	}
	if len(data) == 0 {
		return uuid.Nil, shrubbi_errors.ErrInvalidInput
	}
	e.mu.Lock()
	ch := e.channel
	if ch == nil {
		e.mu.Unlock()
		return uuid.Nil, shrubbi_errors.ErrNoChannel
	}
	gen := e.generation
	channelID := ch.ID
	e.mu.Unlock()

	path := blob.ObjectPath(channelID, e.cfg.UserID, ext)
	if err := e.cfg.Blobs.Upload(ctx, path, mimeType, data); err != nil {
		return uuid.Nil, err
	}

	msgID, err := e.cfg.RPC.SendMessage(ctx, store.SendMessageInput{
		ChannelID: channelID,
		Kind:      domain.KindImage,
		ThreadID:  threadID,
	})
	if err != nil {
		return uuid.Nil, err
	}

	attachment := domain.Attachment{
		ID:          uuid.New(),
		MessageID:   msgID,
		UploaderID:  e.cfg.UserID,
		Kind:        domain.AttachmentImage,
		Bucket:      e.cfg.Blobs.Bucket(),
		StoragePath: path,
		MimeType:    mimeType,
		SizeBytes:   int64(len(data)),
		Width:       width,
		Height:      height,
		CreatedAt:   e.now(),
	}
	if err := e.cfg.Remote.InsertAttachment(ctx, attachment); err != nil {
		return uuid.Nil, err
	}

	msg := domain.Message{
		ID:        msgID,
		ChannelID: channelID,
		SenderID:  e.cfg.UserID,
		Kind:      domain.KindImage,
		CreatedAt: e.now(),
	}
	if threadID != nil {
		msg.ThreadID = uuid.NullUUID{UUID: *threadID, Valid: true}
	}

	e.mu.Lock()
	if !e.stale(gen) {
		for _, dropped := range e.local.UpsertMessage(msg) {
			e.evictMediaLocked(dropped)
		}
		e.local.UpsertAttachment(attachment)
		e.pending.Drain(e.local.HasMessage, e.local)
	}
	e.mu.Unlock()
	return msgID, nil
}

// CreateThread creates a thread and its root message atomically through the
// RPC, then mirrors both locally.
func (e *Engine) CreateThread(ctx context.Context, title, body string) (store.CreateThreadResult, error) {
	if strings.TrimSpace(body) == "" {
		return store.CreateThreadResult{}, shrubbi_errors.ErrBlankBody
	}
	e.mu.Lock()
	ch := e.channel
	if ch == nil {
		e.mu.Unlock()
		return store.CreateThreadResult{}, shrubbi_errors.ErrNoChannel
	}
	gen := e.generation
	channelID := ch.ID
	e.mu.Unlock()

	res, err := e.cfg.RPC.CreateThread(ctx, store.CreateThreadInput{
		ChannelID: channelID,
		Body:      body,
		Title:     title,
		Kind:      domain.KindText,
	})
	if err != nil {
		return store.CreateThreadResult{}, err
	}

	now := e.now()
	thread := domain.Thread{
		ID:        res.ThreadID,
		ChannelID: channelID,
		CreatorID: e.cfg.UserID,
		CreatedAt: now,
	}
	if strings.TrimSpace(title) != "" {
		t := title
		thread.Title = &t
	}
	root := domain.Message{
		ID:        res.RootMessageID,
		ChannelID: channelID,
		SenderID:  e.cfg.UserID,
		ThreadID:  uuid.NullUUID{UUID: res.ThreadID, Valid: true},
		Kind:      domain.KindText,
		Body:      body,
		CreatedAt: now,
	}

	e.mu.Lock()
	if !e.stale(gen) {
		e.local.UpsertThread(thread)
		for _, dropped := range e.local.UpsertMessage(root) {
			e.evictMediaLocked(dropped)
		}
		e.pending.Drain(e.local.HasMessage, e.local)
	}
	e.mu.Unlock()
	return res, nil
}

// DeleteMessage removes the current user's own message optimistically,
// best-effort deletes its chat-media blobs, then tombstones the row. A row
// deletion failure falls back to a full snapshot reload: a partially
// completed blob deletion cannot be cleanly undone, so resynchronizing is
// safer than inverting the removal.
func (e *Engine) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	e.mu.Lock()
	m, ok := e.local.Message(messageID)
	if !ok {
		e.mu.Unlock()
		return shrubbi_errors.ErrNotFound
	}
	if m.SenderID != e.cfg.UserID {
		e.mu.Unlock()
		return shrubbi_errors.ErrAccessDenied
	}
	gen := e.generation
	removed := e.local.RemoveMessage(messageID)
	var paths []string
	for _, a := range removed {
		if e.cfg.Blobs != nil && a.Bucket == e.cfg.Blobs.Bucket() {
			paths = append(paths, a.StoragePath)
			e.media.Evict(a.StoragePath)
		}
	}
	channelID := m.ChannelID
	e.mu.Unlock()

	if len(paths) > 0 {
		if err := e.cfg.Blobs.Delete(ctx, paths...); err != nil {
			e.log.Warnf("blob cleanup for message %s: %v", messageID, err)
		}
	}

	if err := e.cfg.Remote.DeleteMessage(ctx, messageID); err != nil {
		if reloadErr := e.loadSnapshot(ctx, gen, channelID); reloadErr != nil {
			e.log.Errorf("resync after failed delete of %s: %v", messageID, reloadErr)
		}
		return err
	}
	return nil
}
