package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/ascend/server/internal/config"
)

func (e *testEnv) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?token=" + token
}

func (e *testEnv) dial(t *testing.T, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(token), header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// readEvent reads the next text frame and decodes its type.
func readEvent(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var head struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &head))
	return head.Type, data
}

func TestWebSocket_PushesSheetAfterMutation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice")
	sess := env.login(t, "alice")
	char := env.createCharacter(t, sess.Token, "Aria")

	conn, _, err := env.dial(t, sess.Token, nil)
	require.NoError(t, err)

	typ, data := readEvent(t, conn)
	require.Equal(t, eventHello, typ)
	var hello helloEvent
	require.NoError(t, json.Unmarshal(data, &hello))
	assert.Equal(t, sess.AccountID, hello.AccountID)

	status, body := env.do(t, http.MethodPost, charPath(char.ID, "/experience"), sess.Token, experienceRequest{Amount: 500})
	require.Equal(t, http.StatusOK, status, string(body))

	typ, data = readEvent(t, conn)
	require.Equal(t, eventSheet, typ)
	var ev sheetEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, char.ID, ev.CharacterID)
	assert.Equal(t, int64(1), ev.Revision)
	assert.Greater(t, ev.Sheet.Level, 1)

	status, _ = env.do(t, http.MethodDelete, charPath(char.ID, ""), sess.Token, nil)
	require.Equal(t, http.StatusNoContent, status)

	typ, data = readEvent(t, conn)
	require.Equal(t, eventCharacterDeleted, typ)
	var del characterDeletedEvent
	require.NoError(t, json.Unmarshal(data, &del))
	assert.Equal(t, char.ID, del.CharacterID)
}

func TestWebSocket_OnlyOwningAccountReceives(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice")
	env.register(t, "bob")
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")
	char := env.createCharacter(t, alice.Token, "Aria")

	bobConn, _, err := env.dial(t, bob.Token, nil)
	require.NoError(t, err)
	typ, _ := readEvent(t, bobConn)
	require.Equal(t, eventHello, typ)

	status, _ := env.do(t, http.MethodPost, charPath(char.ID, "/experience"), alice.Token, experienceRequest{Amount: 10})
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = bobConn.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's sheet")
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t, nil)

	_, resp, err := env.dial(t, "bogus", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = env.dial(t, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_ConnectionLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.ServerConfig) {
		cfg.Connections.MaxPerIP = 1
	})
	env.register(t, "alice")
	sess := env.login(t, "alice")

	first, _, err := env.dial(t, sess.Token, nil)
	require.NoError(t, err)
	typ, _ := readEvent(t, first)
	require.Equal(t, eventHello, typ)

	_, resp, err := env.dial(t, sess.Token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Closing the first socket frees its slot.
	first.Close()
	require.Eventually(t, func() bool {
		return env.srv.connLimiter.Stats().Total == 0
	}, 5*time.Second, 10*time.Millisecond)

	second, _, err := env.dial(t, sess.Token, nil)
	require.NoError(t, err)
	typ, _ = readEvent(t, second)
	assert.Equal(t, eventHello, typ)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice")
	sess := env.login(t, "alice")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := env.dial(t, sess.Token, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, env.srv.connLimiter.Stats().Total, "rejected upgrade must release its slot")
}

func TestWebSocket_ShutdownClosesSockets(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice")
	sess := env.login(t, "alice")

	conn, _, err := env.dial(t, sess.Token, nil)
	require.NoError(t, err)
	typ, _ := readEvent(t, conn)
	require.Equal(t, eventHello, typ)
	require.Equal(t, 1, env.srv.hub.Count())

	require.NoError(t, env.srv.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	require.Eventually(t, func() bool {
		return env.srv.hub.Count() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	c := &wsClient{accountID: 1, send: make(chan []byte, 1), done: make(chan struct{})}
	require.True(t, hub.register(c))

	assert.Equal(t, 1, hub.Publish(1, characterDeletedEvent{Type: eventCharacterDeleted, CharacterID: 7}))
	assert.Equal(t, 0, hub.Publish(1, characterDeletedEvent{Type: eventCharacterDeleted, CharacterID: 8}))

	select {
	case <-c.done:
	default:
		t.Fatal("slow client should be closed")
	}
	assert.Equal(t, 0, hub.Publish(2, characterDeletedEvent{Type: eventCharacterDeleted}))

	hub.Close()
	assert.False(t, hub.register(&wsClient{accountID: 2, send: make(chan []byte, 1), done: make(chan struct{})}))
}
