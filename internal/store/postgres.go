package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
)

// PostgresStore implements RemoteStore against the backing Postgres database.
// Row-level security policies on the tables keep the result set scoped to the
// authenticated user.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 250
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, channel_id, sender_id, thread_id, reply_to_id, kind, body, metadata, created_at, deleted_at
		FROM channel_messages
		WHERE channel_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *PostgresStore) ListThreads(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 60
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, channel_id, creator_id, title, created_at, archived_at
		FROM channel_threads
		WHERE channel_id = $1 AND archived_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		var t domain.Thread
		if err := rows.Scan(&t.ID, &t.ChannelID, &t.CreatorID, &t.Title, &t.CreatedAt, &t.ArchivedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *PostgresStore) ListAttachments(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Attachment, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, uploader_id, kind, bucket, storage_path, mime_type, size_bytes, width, height, created_at
		FROM message_attachments
		WHERE message_id = ANY($1)`, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttachments(rows)
}

func (s *PostgresStore) ListReactions(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)`, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReactions(rows)
}

func (s *PostgresStore) ListProfiles(ctx context.Context, userIDs []uuid.UUID) ([]domain.ProfileSummary, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, COALESCE(avatar_url, '')
		FROM profiles
		WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.ProfileSummary
	for rows.Next() {
		var p domain.ProfileSummary
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.AvatarURL); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID uuid.UUID) (domain.ProfileSummary, error) {
	var p domain.ProfileSummary
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, COALESCE(avatar_url, '')
		FROM profiles
		WHERE id = $1`, userID).Scan(&p.ID, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProfileSummary{}, shrubbi_errors.ErrNotFound
	}
	if err != nil {
		return domain.ProfileSummary{}, err
	}
	return p, nil
}

func (s *PostgresStore) MessageChildren(ctx context.Context, messageID uuid.UUID) ([]domain.Attachment, []domain.Reaction, error) {
	attachments, err := s.ListAttachments(ctx, []uuid.UUID{messageID})
	if err != nil {
		return nil, nil, err
	}
	reactions, err := s.ListReactions(ctx, []uuid.UUID{messageID})
	if err != nil {
		return nil, nil, err
	}
	return attachments, reactions, nil
}

func (s *PostgresStore) InsertReaction(ctx context.Context, r domain.Reaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		r.MessageID, r.UserID, r.Emoji, r.CreatedAt)
	return err
}

func (s *PostgresStore) DeleteReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3`,
		messageID, userID, emoji)
	return err
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, a domain.Attachment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_attachments (id, message_id, uploader_id, kind, bucket, storage_path, mime_type, size_bytes, width, height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.MessageID, a.UploaderID, a.Kind, a.Bucket, a.StoragePath, a.MimeType, a.SizeBytes, a.Width, a.Height, a.CreatedAt)
	return err
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE channel_messages SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shrubbi_errors.ErrNotFound
	}
	return nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.ThreadID, &m.ReplyToID, &m.Kind, &m.Body, &m.Metadata, &m.CreatedAt, &m.DeletedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanAttachments(rows pgx.Rows) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.UploaderID, &a.Kind, &a.Bucket, &a.StoragePath, &a.MimeType, &a.SizeBytes, &a.Width, &a.Height, &a.CreatedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func scanReactions(rows pgx.Rows) ([]domain.Reaction, error) {
	var reactions []domain.Reaction
	for rows.Next() {
		var r domain.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}
