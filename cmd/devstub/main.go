package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/PouplarWesel/Shrubbi-sub000/config"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/realtime"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/store"
	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
	"github.com/PouplarWesel/Shrubbi-sub000/pkg/logger"
)

// devstub is a local stand-in for the hosted backend: it serves the two
// compound-write RPC endpoints, persists rows to Postgres and publishes the
// matching change events to redis so a locally running engine sees the same
// push stream it would in production.
func main() {
	cfg := config.LoadConfig()
	appLogger := logger.New(cfg.AppMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		appLogger.Errorf("connect to database: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Errorf("connect to redis: %v", err)
		os.Exit(1)
	}
	defer rdb.Close()

	srv := &stubServer{pool: pool, rdb: rdb, log: appLogger, jwtSecret: []byte(cfg.JWTSecret)}

	if cfg.AppMode == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	functions := r.Group("/functions", srv.requireAuth)
	functions.POST("/send-message", srv.sendMessage)
	functions.POST("/create-thread", srv.createThread)

	httpSrv := &http.Server{Addr: cfg.DevStubListen, Handler: r}
	go func() {
		appLogger.Infof("devstub listening on %s", cfg.DevStubListen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Errorf("serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("shutdown: %v", err)
	}
}

type stubServer struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	log       *logger.Logger
	jwtSecret []byte
}

const ctxUserID = "user_id"

// requireAuth validates the bearer token and stashes the caller's user id.
func (s *stubServer) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	sub, err := claims.GetSubject()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid subject"})
		return
	}

	c.Set(ctxUserID, userID)
	c.Next()
}

func (s *stubServer) sendMessage(c *gin.Context) {
	var in store.SendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.ChannelID == uuid.Nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "channel_id is required"})
		return
	}
	if in.Kind == "" {
		in.Kind = domain.KindText
	}
	if in.Kind == domain.KindText && strings.TrimSpace(in.Body) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "body is required"})
		return
	}
	if in.ReplyToID != nil {
		var targetChannel uuid.UUID
		var targetThread uuid.NullUUID
		err := s.pool.QueryRow(c.Request.Context(), `
			SELECT channel_id, thread_id FROM channel_messages
			WHERE id = $1 AND deleted_at IS NULL`, *in.ReplyToID).
			Scan(&targetChannel, &targetThread)
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "reply target not found"})
			return
		}
		if err != nil {
			s.log.Errorf("load reply target: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if err := inheritReply(&in, targetChannel, targetThread); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	msg := domain.Message{
		ID:        uuid.New(),
		ChannelID: in.ChannelID,
		SenderID:  c.MustGet(ctxUserID).(uuid.UUID),
		Kind:      in.Kind,
		Body:      in.Body,
		Metadata:  in.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if in.ThreadID != nil {
		msg.ThreadID = uuid.NullUUID{UUID: *in.ThreadID, Valid: true}
	}
	if in.ReplyToID != nil {
		msg.ReplyToID = uuid.NullUUID{UUID: *in.ReplyToID, Valid: true}
	}

	if err := s.insertMessage(c.Request.Context(), msg); err != nil {
		s.log.Errorf("insert message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert failed"})
		return
	}
	s.publish(c.Request.Context(), realtime.ChannelTopic(msg.ChannelID), realtime.TableMessages, msg)

	c.JSON(http.StatusOK, gin.H{"message_id": msg.ID})
}

func (s *stubServer) createThread(c *gin.Context) {
	var in store.CreateThreadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.ChannelID == uuid.Nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "channel_id is required"})
		return
	}
	if strings.TrimSpace(in.Body) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "body is required"})
		return
	}

	creatorID := c.MustGet(ctxUserID).(uuid.UUID)
	now := time.Now().UTC()
	thread := domain.Thread{
		ID:        uuid.New(),
		ChannelID: in.ChannelID,
		CreatorID: creatorID,
		CreatedAt: now,
	}
	if strings.TrimSpace(in.Title) != "" {
		title := in.Title
		thread.Title = &title
	}
	root := domain.Message{
		ID:        uuid.New(),
		ChannelID: in.ChannelID,
		SenderID:  creatorID,
		ThreadID:  uuid.NullUUID{UUID: thread.ID, Valid: true},
		Kind:      domain.KindText,
		Body:      in.Body,
		CreatedAt: now,
	}

	// Thread and root message land in one transaction; the client relies on
	// the pair being created atomically.
	tx, err := s.pool.Begin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "begin failed"})
		return
	}
	defer tx.Rollback(c.Request.Context())

	if _, err := tx.Exec(c.Request.Context(), `
		INSERT INTO channel_threads (id, channel_id, creator_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		thread.ID, thread.ChannelID, thread.CreatorID, thread.Title, thread.CreatedAt); err != nil {
		s.log.Errorf("insert thread: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert failed"})
		return
	}
	if _, err := tx.Exec(c.Request.Context(), `
		INSERT INTO channel_messages (id, channel_id, sender_id, thread_id, kind, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		root.ID, root.ChannelID, root.SenderID, root.ThreadID, root.Kind, root.Body, root.CreatedAt); err != nil {
		s.log.Errorf("insert root message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert failed"})
		return
	}
	if err := tx.Commit(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "commit failed"})
		return
	}

	topic := realtime.ChannelTopic(in.ChannelID)
	s.publish(c.Request.Context(), topic, realtime.TableThreads, thread)
	s.publish(c.Request.Context(), topic, realtime.TableMessages, root)

	c.JSON(http.StatusOK, store.CreateThreadResult{ThreadID: thread.ID, RootMessageID: root.ID})
}

// inheritReply enforces the reply contract: the target must live in the same
// channel, and a reply to a threaded message lands in that thread when the
// caller passed none.
func inheritReply(in *store.SendMessageInput, targetChannel uuid.UUID, targetThread uuid.NullUUID) error {
	if targetChannel != in.ChannelID {
		return shrubbi_errors.ErrCrossChannelReply
	}
	if in.ThreadID == nil && targetThread.Valid {
		tid := targetThread.UUID
		in.ThreadID = &tid
	}
	return nil
}

func (s *stubServer) insertMessage(ctx context.Context, m domain.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO channel_messages (id, channel_id, sender_id, thread_id, reply_to_id, kind, body, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ChannelID, m.SenderID, m.ThreadID, m.ReplyToID, m.Kind, m.Body, m.Metadata, m.CreatedAt)
	return err
}

// publish mirrors the row change onto the channel's topic the way the hosted
// backend's replication hook does.
func (s *stubServer) publish(ctx context.Context, topic, table string, row any) {
	record, err := json.Marshal(row)
	if err != nil {
		s.log.Errorf("marshal %s row: %v", table, err)
		return
	}
	payload, err := json.Marshal(realtime.ChangeEvent{Table: table, Op: realtime.OpInsert, Record: record})
	if err != nil {
		s.log.Errorf("marshal %s event: %v", table, err)
		return
	}
	if err := s.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		s.log.Warnf("publish %s to %s: %v", table, topic, err)
	}
}
