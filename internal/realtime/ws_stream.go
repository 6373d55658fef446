package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PouplarWesel/Shrubbi-sub000/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 1 << 20
)

// wsFrame is the control/data frame exchanged with the realtime gateway.
type wsFrame struct {
	Action  string          `json:"action"` // subscribe | unsubscribe | event
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscriber delivers change events over a single multiplexed websocket
// connection to the realtime gateway.
type WSSubscriber struct {
	conn     *websocket.Conn
	log      *logger.Logger
	mu       sync.RWMutex // protects handlers and conn writes
	handlers map[string]Handler
	ctx      context.Context
	cancel   context.CancelFunc
}

// DialWS connects to the gateway and starts the read loop. The bearer token
// is sent as a header so the gateway can enforce row-level visibility on the
// topics it fans out.
func DialWS(ctx context.Context, url, token string, log *logger.Logger) (*WSSubscriber, error) {
	if log == nil {
		log = logger.NewNop()
	}
	header := map[string][]string{}
	if token != "" {
		header["Authorization"] = []string{"Bearer " + token}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &WSSubscriber{
		conn:     conn,
		log:      log,
		handlers: make(map[string]Handler),
		ctx:      runCtx,
		cancel:   cancel,
	}
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

func (s *WSSubscriber) Subscribe(ctx context.Context, topic string, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFrame(wsFrame{Action: "subscribe", Topic: topic}); err != nil {
		return err
	}
	s.handlers[topic] = handler
	return nil
}

func (s *WSSubscriber) Unsubscribe(ctx context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, topic)
	return s.writeFrame(wsFrame{Action: "unsubscribe", Topic: topic})
}

func (s *WSSubscriber) Close() error {
	s.cancel()
	return s.conn.Close()
}

// writeFrame must be called with s.mu held.
func (s *WSSubscriber) writeFrame(f wsFrame) error {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(f)
}

func (s *WSSubscriber) readLoop() {
	s.conn.SetReadLimit(wsReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var frame wsFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if s.ctx.Err() == nil {
				s.log.Warnf("realtime websocket closed: %v", err)
			}
			return
		}
		if frame.Action != "event" {
			continue
		}
		s.mu.RLock()
		handler := s.handlers[frame.Topic]
		s.mu.RUnlock()
		if handler == nil {
			continue
		}
		handler(frame.Topic, frame.Payload)
	}
}

func (s *WSSubscriber) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
