package ws

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/YashSaini213/virtual-conference-translator/internal/auth"
	"github.com/YashSaini213/virtual-conference-translator/internal/models"
	"github.com/YashSaini213/virtual-conference-translator/internal/relay"
	"github.com/YashSaini213/virtual-conference-translator/internal/store"
)

const testSecret = "ws-test-secret"

// memStore is an in-memory DataStore for handler tests.
type memStore struct {
	mu         sync.Mutex
	sessions   map[uuid.UUID]*models.Session
	keyHashes  map[uuid.UUID]string
	transcript []models.TranscriptEntry
	summaries  []models.Summary
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  make(map[uuid.UUID]*models.Session),
		keyHashes: make(map[uuid.UUID]string),
	}
}

func (m *memStore) addSession(keyHash string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.sessions[id] = &models.Session{ID: id, Title: "t", HostID: "host", Status: models.SessionActive}
	if keyHash != "" {
		m.keyHashes[id] = keyHash
		m.sessions[id].IsPrivate = true
	}
	return id
}

func (m *memStore) Close() {}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateSession(_ context.Context, title, hostID, keyHash string) (*models.Session, error) {
	id := m.addSession(keyHash)
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	s.Title, s.HostID = title, hostID
	return s, nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memStore) GetSessionKeyHash(_ context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyHashes[id], nil
}

func (m *memStore) ListActiveSessions(context.Context, int, int) ([]models.Session, int, error) {
	return nil, 0, nil
}

func (m *memStore) EndSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = models.SessionEnded
	}
	return nil
}

func (m *memStore) IncrementEventCount(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.EventCount++
	}
	return nil
}

func (m *memStore) CountSessions(context.Context) (int64, error) { return 0, nil }

func (m *memStore) GetMostRecentActivity(context.Context) (*time.Time, error) { return nil, nil }

func (m *memStore) AddTranscriptEntry(_ context.Context, entry *models.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcript = append(m.transcript, *entry)
	return nil
}

func (m *memStore) ListTranscript(context.Context, string, int, int64) ([]models.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TranscriptEntry, len(m.transcript))
	copy(out, m.transcript)
	return out, nil
}

func (m *memStore) SaveSummary(_ context.Context, summary *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, *summary)
	return nil
}

func (m *memStore) GetLatestSummary(context.Context, string) (*models.Summary, error) {
	return nil, nil
}

func (m *memStore) transcriptLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transcript)
}

func signToken(t *testing.T, sub, name, role string) string {
	t.Helper()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name: name,
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func newTestServer(t *testing.T, ds store.DataStore) *httptest.Server {
	t.Helper()
	rl := relay.New(store.NewLifecycleGate(ds), relay.Options{
		Logger:          zerolog.Nop(),
		InstanceID:      "test-instance",
		DeliveryTimeout: time.Second,
	})
	verifier := auth.NewVerifier("", testSecret, zerolog.Nop())
	h := NewHandler(rl, ds, nil, verifier, nil, zerolog.Nop())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatal(err)
	}
	return frame
}

func frameField(t *testing.T, frame map[string]json.RawMessage, field string) string {
	t.Helper()
	var s string
	if raw, ok := frame[field]; ok {
		if err := json.Unmarshal(raw, &s); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func joinSession(t *testing.T, conn *websocket.Conn, sessionID, key string) {
	t.Helper()
	sendFrame(t, conn, Envelope{Type: FrameJoinSession, SessionID: sessionID, Key: key})
	frame := readFrame(t, conn)
	if got := frameField(t, frame, "type"); got != FrameJoined {
		t.Fatalf("expected joined ack, got %v", frame)
	}
}

func TestHandshakeRequiresToken(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestChatFanOut(t *testing.T) {
	ds := newMemStore()
	sessionID := ds.addSession("").String()
	srv := newTestServer(t, ds)

	alice := dial(t, srv, signToken(t, "u1", "Alice", ""))
	bob := dial(t, srv, signToken(t, "u2", "Bob", ""))
	joinSession(t, alice, sessionID, "")
	joinSession(t, bob, sessionID, "")

	sendFrame(t, alice, Envelope{Type: models.EventChatMessage, Payload: json.RawMessage(`{"text":"hello"}`)})

	frame := readFrame(t, bob)
	if got := frameField(t, frame, "type"); got != models.EventChatMessage {
		t.Fatalf("expected chat frame, got %v", frame)
	}
	if got := frameField(t, frame, "sessionId"); got != sessionID {
		t.Fatalf("wrong session: %s", got)
	}
	if _, hasOrigin := frame["origin"]; hasOrigin {
		t.Fatal("origin must not reach the client wire")
	}

	// The sender gets no echo: the next thing it can read should time out.
	alice.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Fatal("sender must not receive its own event")
	}
}

func TestJoinUnknownSession(t *testing.T) {
	ds := newMemStore()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	sendFrame(t, conn, Envelope{Type: FrameJoinSession, SessionID: uuid.NewString()})

	frame := readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeInvalidRoom {
		t.Fatalf("expected invalid_room, got %v", frame)
	}
}

func TestJoinEndedSession(t *testing.T) {
	ds := newMemStore()
	id := ds.addSession("")
	ds.EndSession(context.Background(), id)
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	sendFrame(t, conn, Envelope{Type: FrameJoinSession, SessionID: id.String()})

	frame := readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeInvalidRoom {
		t.Fatalf("expected invalid_room, got %v", frame)
	}
}

func TestPrivateSessionKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	ds := newMemStore()
	sessionID := ds.addSession(string(hash)).String()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))

	sendFrame(t, conn, Envelope{Type: FrameJoinSession, SessionID: sessionID, Key: "wrong"})
	frame := readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeForbidden {
		t.Fatalf("expected forbidden, got %v", frame)
	}

	joinSession(t, conn, sessionID, "s3cret")
}

func TestEventBeforeJoin(t *testing.T) {
	ds := newMemStore()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	sendFrame(t, conn, Envelope{Type: models.EventChatMessage, Payload: json.RawMessage(`{"text":"hi"}`)})

	frame := readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeNotAMember {
		t.Fatalf("expected not_a_member, got %v", frame)
	}
}

func TestSummaryUpdateIsHostOnly(t *testing.T) {
	ds := newMemStore()
	sessionID := ds.addSession("").String()
	srv := newTestServer(t, ds)

	guest := dial(t, srv, signToken(t, "u1", "Alice", ""))
	joinSession(t, guest, sessionID, "")
	sendFrame(t, guest, Envelope{Type: models.EventSummaryUpdate, Payload: json.RawMessage(`{"text":"s"}`)})
	frame := readFrame(t, guest)
	if got := frameField(t, frame, "code"); got != CodeForbidden {
		t.Fatalf("expected forbidden, got %v", frame)
	}

	host := dial(t, srv, signToken(t, "u2", "Host", RoleHost))
	listener := dial(t, srv, signToken(t, "u3", "Carol", ""))
	joinSession(t, host, sessionID, "")
	joinSession(t, listener, sessionID, "")
	sendFrame(t, host, Envelope{Type: models.EventSummaryUpdate, Payload: json.RawMessage(`{"text":"s"}`)})
	frame = readFrame(t, listener)
	if got := frameField(t, frame, "type"); got != models.EventSummaryUpdate {
		t.Fatalf("expected summary frame, got %v", frame)
	}
}

func TestUnsupportedFrameType(t *testing.T) {
	ds := newMemStore()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	sendFrame(t, conn, Envelope{Type: "bogus"})

	frame := readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeUnsupportedType {
		t.Fatalf("expected unsupported_type, got %v", frame)
	}
}

func TestOversizePayloadRejected(t *testing.T) {
	ds := newMemStore()
	sessionID := ds.addSession("").String()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	joinSession(t, conn, sessionID, "")

	big := fmt.Sprintf(`{"text":%q}`, strings.Repeat("a", MaxPayloadSize))
	sendFrame(t, conn, Envelope{Type: models.EventChatMessage, Payload: json.RawMessage(big)})

	frame := readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeBadPayload {
		t.Fatalf("expected bad_payload, got %v", frame)
	}
}

func TestCaptionIsPersisted(t *testing.T) {
	ds := newMemStore()
	sessionID := ds.addSession("").String()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	joinSession(t, conn, sessionID, "")

	sendFrame(t, conn, Envelope{Type: models.EventCaptionUpdate, Payload: json.RawMessage(`{"text":"hola","lang":"es"}`)})

	deadline := time.Now().Add(2 * time.Second)
	for ds.transcriptLen() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("caption was not persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries, _ := ds.ListTranscript(context.Background(), sessionID, 10, 0)
	e := entries[0]
	if e.Text != "hola" || e.Lang != "es" || e.SpeakerID != "u1" || e.SessionID != sessionID {
		t.Fatalf("unexpected transcript entry: %+v", e)
	}
	if e.ID == "" || e.Timestamp == 0 {
		t.Fatal("entry must carry the event ID and timestamp")
	}
}

func TestLeaveSession(t *testing.T) {
	ds := newMemStore()
	sessionID := ds.addSession("").String()
	srv := newTestServer(t, ds)

	conn := dial(t, srv, signToken(t, "u1", "Alice", ""))
	joinSession(t, conn, sessionID, "")

	sendFrame(t, conn, Envelope{Type: FrameLeaveSession})
	frame := readFrame(t, conn)
	if got := frameField(t, frame, "type"); got != FrameLeft {
		t.Fatalf("expected left ack, got %v", frame)
	}

	sendFrame(t, conn, Envelope{Type: models.EventChatMessage, Payload: json.RawMessage(`{"text":"hi"}`)})
	frame = readFrame(t, conn)
	if got := frameField(t, frame, "code"); got != CodeNotAMember {
		t.Fatalf("expected not_a_member after leave, got %v", frame)
	}
}
