package main

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/store"
	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
)

func TestInheritReplyRejectsCrossChannelTarget(t *testing.T) {
	in := store.SendMessageInput{ChannelID: uuid.New()}

	err := inheritReply(&in, uuid.New(), uuid.NullUUID{})
	if !errors.Is(err, shrubbi_errors.ErrCrossChannelReply) {
		t.Fatalf("expected cross-channel rejection, got %v", err)
	}
}

func TestInheritReplyAdoptsTargetThread(t *testing.T) {
	channelID := uuid.New()
	threadID := uuid.New()
	in := store.SendMessageInput{ChannelID: channelID}

	if err := inheritReply(&in, channelID, uuid.NullUUID{UUID: threadID, Valid: true}); err != nil {
		t.Fatalf("inheritReply: %v", err)
	}
	if in.ThreadID == nil || *in.ThreadID != threadID {
		t.Fatalf("reply did not inherit target thread, got %v", in.ThreadID)
	}
}

func TestInheritReplyKeepsCallerThread(t *testing.T) {
	channelID := uuid.New()
	callerThread := uuid.New()
	in := store.SendMessageInput{ChannelID: channelID, ThreadID: &callerThread}

	if err := inheritReply(&in, channelID, uuid.NullUUID{UUID: uuid.New(), Valid: true}); err != nil {
		t.Fatalf("inheritReply: %v", err)
	}
	if *in.ThreadID != callerThread {
		t.Fatalf("caller-chosen thread was overridden")
	}
}

func TestInheritReplyLeavesMainStreamReplyThreadless(t *testing.T) {
	channelID := uuid.New()
	in := store.SendMessageInput{ChannelID: channelID}

	if err := inheritReply(&in, channelID, uuid.NullUUID{}); err != nil {
		t.Fatalf("inheritReply: %v", err)
	}
	if in.ThreadID != nil {
		t.Fatalf("reply to a main-stream message must stay thread-less")
	}
}
