package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/PouplarWesel/Shrubbi-sub000/config"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/blob"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/chatsync"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/realtime"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/store"
	"github.com/PouplarWesel/Shrubbi-sub000/pkg/logger"
)

// chatwatch tails one channel from a terminal: it runs the full sync engine
// (snapshot load, change stream, media URL signing) and prints the visible
// message list whenever it changes.
func main() {
	var (
		channelFlag = flag.String("channel", "", "channel id to watch (required)")
		userFlag    = flag.String("user", "", "user id to act as (required)")
		cityFlag    = flag.String("city", "", "city id for the events topic (optional)")
	)
	flag.Parse()

	channelID, err := uuid.Parse(*channelFlag)
	if err != nil {
		log.Fatalf("-channel: %v", err)
	}
	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatalf("-user: %v", err)
	}
	var cityID uuid.UUID
	if *cityFlag != "" {
		if cityID, err = uuid.Parse(*cityFlag); err != nil {
			log.Fatalf("-city: %v", err)
		}
	}

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

	subscriber, err := buildSubscriber(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Errorf("connect to change stream: %v", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	blobs, err := blob.NewClient(ctx, blob.S3Config{
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Endpoint:  cfg.S3Endpoint,
		SignTTL:   cfg.SignedURLTTL,
	})
	if err != nil {
		appLogger.Errorf("configure media store: %v", err)
		os.Exit(1)
	}

	engine := chatsync.NewEngine(chatsync.Config{
		Remote:     store.NewPostgresStore(pool),
		RPC:        store.NewHTTPRPC(cfg.RPCBaseURL, cfg.RPCToken),
		Blobs:      blobs,
		Subscriber: subscriber,
		Logger:     appLogger,
		UserID:     userID,
		CityID:     cityID,
		OnCityEvents: func() {
			appLogger.Infof("city events changed, reload the events surface")
		},
	})

	channel := domain.Channel{ID: channelID, Scope: domain.ScopeCity, CityID: cityID}
	if err := engine.SwitchChannel(ctx, &channel); err != nil {
		appLogger.Errorf("open channel %s: %v", channelID, err)
		os.Exit(1)
	}
	appLogger.Infof("watching channel %s as %s", channelID, userID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var lastPrinted int

	for {
		select {
		case <-ctx.Done():
			appLogger.Infof("shutting down")
			return
		case <-ticker.C:
			messages := engine.VisibleMessages()
			if len(messages) == lastPrinted {
				continue
			}
			lastPrinted = len(messages)
			printMessages(engine, messages)
		}
	}
}

func buildSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger) (realtime.Subscriber, error) {
	switch cfg.RealtimeTransport {
	case "websocket":
		return realtime.DialWS(ctx, cfg.RealtimeWSURL, cfg.RPCToken, log)
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return realtime.NewRedisSubscriber(client, log), nil
	}
}

func printMessages(engine *chatsync.Engine, messages []domain.Message) {
	fmt.Printf("--- %d messages ---\n", len(messages))
	for _, m := range messages {
		sender := m.SenderID.String()[:8]
		if p, ok := engine.Profile(m.SenderID); ok {
			sender = p.DisplayName
		}
		body := m.Body
		if gif, ok := m.GifURL(); ok {
			body = "[gif] " + gif
		}
		if m.Kind == domain.KindImage {
			body = fmt.Sprintf("[image x%d]", len(engine.Attachments(m.ID)))
		}
		fmt.Printf("%s  %-16s %s\n", m.CreatedAt.Format("15:04:05"), sender, body)
	}
}
