package chatsync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	"github.com/PouplarWesel/Shrubbi-sub000/internal/realtime"
)

type testEnv struct {
	engine  *Engine
	remote  *fakeRemote
	rpc     *fakeRPC
	blobs   *fakeBlobs
	sub     *fakeSubscriber
	channel domain.Channel
	userID  uuid.UUID

	hydrations []func()
}

// newTestEnv builds an engine with fakes and an already-selected channel.
// Hydration timers are captured instead of scheduled so tests fire them
// deterministically.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		remote: newFakeRemote(),
		rpc:    newFakeRPC(),
		blobs:  &fakeBlobs{},
		sub:    newFakeSubscriber(),
		userID: uuid.New(),
	}
	env.channel = domain.Channel{
		ID:     uuid.New(),
		Scope:  domain.ScopeCity,
		CityID: uuid.New(),
		Name:   "downtown",
	}
	env.engine = NewEngine(Config{
		Remote:     env.remote,
		RPC:        env.rpc,
		Blobs:      env.blobs,
		Subscriber: env.sub,
		UserID:     env.userID,
		CityID:     env.channel.CityID,
	})
	env.engine.after = func(d time.Duration, f func()) {
		env.hydrations = append(env.hydrations, f)
	}
	if err := env.engine.SwitchChannel(context.Background(), &env.channel); err != nil {
		t.Fatalf("SwitchChannel: %v", err)
	}
	return env
}

// emit delivers a change event on the channel's chat topic.
func (env *testEnv) emit(t *testing.T, table string, op realtime.Operation, row any) {
	t.Helper()
	payload := encodeEvent(t, table, op, row)
	env.sub.Emit(realtime.ChannelTopic(env.channel.ID), payload)
}

func encodeEvent(t *testing.T, table string, op realtime.Operation, row any) []byte {
	t.Helper()
	record, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}
	ev := realtime.ChangeEvent{Table: table, Op: op}
	if op == realtime.OpDelete {
		ev.OldRecord = record
	} else {
		ev.Record = record
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

// runHydrations fires every captured debounce callback.
func (env *testEnv) runHydrations() {
	pending := env.hydrations
	env.hydrations = nil
	for _, f := range pending {
		f()
	}
}

func (env *testEnv) message(at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		SenderID:  env.userID,
		Kind:      domain.KindText,
		Body:      "hello",
		CreatedAt: at,
	}
}

// eventually polls until the condition holds or the deadline passes. Used for
// the engine's background fetches (profiles).
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}
