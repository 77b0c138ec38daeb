package push

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisRelayDeliversToHub(t *testing.T) {
	srv := miniredis.RunT(t)
	log := quietLogger()

	b, err := NewRedisBroadcaster("redis://"+srv.Addr(), log)
	if err != nil {
		t.Fatalf("NewRedisBroadcaster: %v", err)
	}
	defer b.Close()

	hub := NewHub(log)
	conn := newFakeConn()
	hub.Register(conn, PlanChannel(9))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	go func() { _ = b.Relay(ctx, hub, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	msg := NewMessage(TypeMemberRemoved, 9, 4, map[string]interface{}{"reason": "inactive"})
	if err := b.Publish(ctx, PlanChannel(9), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitWrite(t, conn)

	got := conn.messages()
	if len(got) != 1 || got[0].ID != msg.ID || got[0].UserID != 4 {
		t.Fatalf("relayed %+v", got)
	}
	if got[0].Payload["reason"] != "inactive" {
		t.Fatalf("payload = %v", got[0].Payload)
	}
}

func TestNewRedisBroadcasterRejectsBadURL(t *testing.T) {
	if _, err := NewRedisBroadcaster("not-a-url", quietLogger()); err == nil {
		t.Fatal("expected error")
	}
}
