package chatsync

import (
	"context"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
)

// loadSnapshot performs the bulk load for a channel and replaces the local
// state wholesale on success. Any query failure aborts without mutating
// state, leaving the previous snapshot visible. A load whose generation has
// been superseded by a newer channel switch is discarded on completion.
func (e *Engine) loadSnapshot(ctx context.Context, gen uint64, channelID uuid.UUID) error {
	messages, err := e.cfg.Remote.ListMessages(ctx, channelID, e.messageCap())
	if err != nil {
		return err
	}
	threads, err := e.cfg.Remote.ListThreads(ctx, channelID, e.threadCap())
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	attachments, err := e.cfg.Remote.ListAttachments(ctx, ids)
	if err != nil {
		return err
	}
	reactions, err := e.cfg.Remote.ListReactions(ctx, ids)
	if err != nil {
		return err
	}

	profiles, err := e.cfg.Remote.ListProfiles(ctx, referencedUsers(messages, threads, reactions))
	if err != nil {
		return err
	}

	// One shared batch signing request for everything in the chat-media
	// bucket.
	var urls map[string]string
	if e.cfg.Blobs != nil {
		var paths []string
		for _, a := range attachments {
			if a.Bucket == e.cfg.Blobs.Bucket() {
				paths = append(paths, a.StoragePath)
			}
		}
		if len(paths) > 0 {
			urls, err = e.cfg.Blobs.SignGetBatch(ctx, paths)
			if err != nil {
				return err
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return nil
	}
	e.local.Replace(messages, threads, attachments, reactions, profiles)
	e.media.ReplaceAll(urls)
	e.pending.Clear()
	return nil
}

// referencedUsers collects every distinct sender, reactor and thread creator
// id in the snapshot.
func referencedUsers(messages []domain.Message, threads []domain.Thread, reactions []domain.Reaction) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, m := range messages {
		add(m.SenderID)
	}
	for _, t := range threads {
		add(t.CreatorID)
	}
	for _, r := range reactions {
		add(r.UserID)
	}
	return ids
}

func (e *Engine) messageCap() int {
	if e.cfg.MessageCap > 0 {
		return e.cfg.MessageCap
	}
	return DefaultMessageCap
}

func (e *Engine) threadCap() int {
	if e.cfg.ThreadCap > 0 {
		return e.cfg.ThreadCap
	}
	return DefaultThreadCap
}
