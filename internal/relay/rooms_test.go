package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestJoinLeaveNetEffect(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	ctx := context.Background()

	c1 := s.Connect(&fakeConn{}, Identity{UserID: "u1"})
	c2 := s.Connect(&fakeConn{}, Identity{UserID: "u2"})

	if err := s.Join(ctx, "sess-1", c1.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Join(ctx, "sess-1", c2.ID); err != nil {
		t.Fatal(err)
	}
	s.Leave("sess-1", c1.ID)

	members := s.Rooms.MembersOf("sess-1")
	if len(members) != 1 || members[0] != c2.ID {
		t.Fatalf("expected only c2 in room, got %v", members)
	}
}

func TestJoinInvalidRoom(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})

	err := s.Join(context.Background(), "no-such-session", c.ID)
	if !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("expected ErrInvalidRoom, got %v", err)
	}
	if got := s.Rooms.MembersOf("no-such-session"); len(got) != 0 {
		t.Fatalf("rejected join must not create a room, got %v", got)
	}
}

func TestJoinEndedSession(t *testing.T) {
	gate := newFakeGate("sess-1")
	s := newTestRelay(gate, 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})

	gate.end("sess-1")
	if err := s.Join(context.Background(), "sess-1", c.ID); !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("expected ErrInvalidRoom for ended session, got %v", err)
	}
}

func TestJoinGateFailure(t *testing.T) {
	gate := newFakeGate("sess-1")
	gate.err = errors.New("store unavailable")
	s := newTestRelay(gate, 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})

	err := s.Join(context.Background(), "sess-1", c.ID)
	if err == nil || errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("gate failure should surface as its own error, got %v", err)
	}
}

func TestJoinIdempotent(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})
	ctx := context.Background()

	if err := s.Join(ctx, "sess-1", c.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Join(ctx, "sess-1", c.ID); err != nil {
		t.Fatal(err)
	}

	if n := len(s.Rooms.MembersOf("sess-1")); n != 1 {
		t.Fatalf("double join should leave membership at 1, got %d", n)
	}
}

func TestLastJoinWins(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1", "sess-2"), 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})
	ctx := context.Background()

	if err := s.Join(ctx, "sess-1", c.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Join(ctx, "sess-2", c.ID); err != nil {
		t.Fatal(err)
	}

	if got := s.Rooms.MembersOf("sess-1"); len(got) != 0 {
		t.Fatalf("expected no members left in sess-1, got %v", got)
	}
	if got := s.Rooms.MembersOf("sess-2"); len(got) != 1 {
		t.Fatalf("expected c in sess-2, got %v", got)
	}
	if roomID, ok := s.Rooms.RoomOf(c.ID); !ok || roomID != "sess-2" {
		t.Fatalf("expected RoomOf to report sess-2, got %q %v", roomID, ok)
	}
}

func TestLeaveWithoutJoinIsNoop(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})

	s.Leave("sess-1", c.ID) // never joined

	if got := s.Rooms.MembersOf("sess-1"); len(got) != 0 {
		t.Fatalf("expected empty membership, got %v", got)
	}
}

func TestEmptyRoomIsDestroyed(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	c := s.Connect(&fakeConn{}, Identity{UserID: "u1"})
	ctx := context.Background()

	if err := s.Join(ctx, "sess-1", c.ID); err != nil {
		t.Fatal(err)
	}
	if s.Rooms.Count() != 1 {
		t.Fatalf("expected 1 room, got %d", s.Rooms.Count())
	}

	s.Leave("sess-1", c.ID)

	if s.Rooms.Count() != 0 {
		t.Fatalf("emptied room should be destroyed, have %d rooms", s.Rooms.Count())
	}
	// membersOf of an absent room is still an empty answer, not an error
	if got := s.Rooms.MembersOf("sess-1"); len(got) != 0 {
		t.Fatalf("expected empty membership, got %v", got)
	}
}

func TestDisconnectPrunesRoom(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	conn := &fakeConn{}
	c := s.Connect(conn, Identity{UserID: "u1"})

	if err := s.Join(context.Background(), "sess-1", c.ID); err != nil {
		t.Fatal(err)
	}
	s.Disconnect(c.ID)

	if got := s.Rooms.MembersOf("sess-1"); len(got) != 0 {
		t.Fatalf("disconnect should prune membership, got %v", got)
	}
	if _, ok := s.Registry.Lookup(c.ID); ok {
		t.Fatal("disconnect should deregister the connection")
	}
	if !conn.isClosed() {
		t.Fatal("disconnect should close the transport")
	}

	// Disconnecting again is a no-op.
	s.Disconnect(c.ID)
}

func TestDestroyEvictsMembers(t *testing.T) {
	s := newTestRelay(newFakeGate("sess-1"), 0)
	ctx := context.Background()
	c1 := s.Connect(&fakeConn{}, Identity{UserID: "u1"})
	c2 := s.Connect(&fakeConn{}, Identity{UserID: "u2"})
	if err := s.Join(ctx, "sess-1", c1.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Join(ctx, "sess-1", c2.ID); err != nil {
		t.Fatal(err)
	}

	evicted := s.CloseRoom("sess-1")
	if len(evicted) != 2 {
		t.Fatalf("expected 2 evicted, got %v", evicted)
	}
	if s.Rooms.Count() != 0 {
		t.Fatalf("expected no rooms, got %d", s.Rooms.Count())
	}
	// Members stay registered and can join another session.
	if _, ok := s.Registry.Lookup(c1.ID); !ok {
		t.Fatal("evicted member should stay registered")
	}
	if _, ok := s.Rooms.RoomOf(c1.ID); ok {
		t.Fatal("evicted member should not be in any room")
	}
}

func TestConcurrentJoinLeaveDifferentRooms(t *testing.T) {
	sessions := make([]string, 8)
	for i := range sessions {
		sessions[i] = fmt.Sprintf("sess-%d", i)
	}
	s := newTestRelay(newFakeGate(sessions...), 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		c := s.Connect(&fakeConn{}, Identity{UserID: fmt.Sprintf("u%d", i)})
		sessionID := sessions[i%len(sessions)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := s.Join(ctx, sessionID, c.ID); err != nil {
					t.Error(err)
					return
				}
				s.Leave(sessionID, c.ID)
			}
		}()
	}
	wg.Wait()

	if s.Rooms.Count() != 0 {
		t.Fatalf("expected all rooms destroyed after net-zero sequences, got %d", s.Rooms.Count())
	}
	for _, sessionID := range sessions {
		if got := s.Rooms.MembersOf(sessionID); len(got) != 0 {
			t.Fatalf("room %s should be empty, got %v", sessionID, got)
		}
	}
}
