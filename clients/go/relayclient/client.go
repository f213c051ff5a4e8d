// Package relayclient provides a Go client for the conference relay: REST
// calls for session management and a WebSocket connection for live events.
package relayclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Client talks to a relay server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new relay client. token authenticates both REST calls
// and the WebSocket handshake.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request and decodes the JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Session is a conference session as returned by the API.
type Session struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	HostID     string `json:"host_id"`
	Status     string `json:"status"`
	IsPrivate  bool   `json:"is_private"`
	EventCount int64  `json:"event_count"`
}

// CreateSession creates a session. key is optional; when set the session is
// private and joiners must present it.
func (c *Client) CreateSession(ctx context.Context, title, key string) (*Session, error) {
	var sess Session
	err := c.doRequest(ctx, http.MethodPost, "/sessions", map[string]string{
		"title": title,
		"key":   key,
	}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns active sessions.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var resp struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// EndSession ends a session. Host only.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.doRequest(ctx, http.MethodPost, "/sessions/"+sessionID+"/end", nil, nil)
}

// Summarize asks the server to summarize the session transcript. Host only.
func (c *Client) Summarize(ctx context.Context, sessionID string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/sessions/"+sessionID+"/summarize", nil, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// TranscriptEntry is one transcript line as returned by the API.
type TranscriptEntry struct {
	ID        string `json:"id"`
	SpeakerID string `json:"speaker_id"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
	Lang      string `json:"lang,omitempty"`
	Timestamp int64  `json:"ts"`
}

// GetTranscript returns the session transcript, newest first.
func (c *Client) GetTranscript(ctx context.Context, sessionID string, limit int) ([]TranscriptEntry, error) {
	var resp struct {
		Entries []TranscriptEntry `json:"entries"`
	}
	path := fmt.Sprintf("/sessions/%s/transcript?limit=%d", sessionID, limit)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Event is a relayed event received over the WebSocket.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Sender    struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	} `json:"sender"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"ts"`
}

// Conn is a live WebSocket connection to the relay.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens the WebSocket connection.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = "token=" + url.QueryEscape(c.Token)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

type frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Join joins a session room. key is required for private sessions.
func (c *Conn) Join(sessionID, key string) error {
	return c.ws.WriteJSON(frame{Type: "join-session", SessionID: sessionID, Key: key})
}

// Leave leaves the current session room.
func (c *Conn) Leave() error {
	return c.ws.WriteJSON(frame{Type: "leave-session"})
}

// SendCaption publishes a caption to the joined session.
func (c *Conn) SendCaption(text, lang string) error {
	return c.send("caption-update", map[string]string{"text": text, "lang": lang})
}

// SendChat publishes a chat message to the joined session.
func (c *Conn) SendChat(text string) error {
	return c.send("chat-message", map[string]string{"text": text})
}

func (c *Conn) send(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.ws.WriteJSON(frame{Type: eventType, Payload: data})
}

// Next blocks until the next frame arrives. Control frames (joined, left,
// error) are returned with their type set and an empty payload.
func (c *Conn) Next() (*Event, error) {
	var ev Event
	if err := c.ws.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Close closes the WebSocket connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
