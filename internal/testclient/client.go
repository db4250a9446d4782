// Package testclient drives the HTTP and WebSocket API of a running server.
package testclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TestClient represents one authenticated account talking to the server
type TestClient struct {
	Name      string
	AccountID int64
	baseURL   string
	http      *http.Client
	token     string

	conn     *websocket.Conn
	messages []Event
	mu       sync.Mutex
	done     chan struct{}
}

// Credentials holds login/registration information
type Credentials struct {
	Username      string
	Password      string
	CharacterName string
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Combat mirrors the derived combat block of a sheet.
type Combat struct {
	PhysicalDamage  int64   `json:"physical_damage"`
	MagicalDamage   int64   `json:"magical_damage"`
	PhysicalDefense int64   `json:"physical_defense"`
	MagicalDefense  int64   `json:"magical_defense"`
	CriticalChance  float64 `json:"critical_chance"`
	DodgeChance     float64 `json:"dodge_chance"`
	MaxHP           int64   `json:"max_hp"`
	MaxMP           int64   `json:"max_mp"`
}

// Sheet is a computed stat sheet. Effective is keyed by full stat name.
type Sheet struct {
	Level              int                `json:"level"`
	PrestigeLevel      int                `json:"prestige_level"`
	PrestigeMultiplier float64            `json:"prestige_multiplier"`
	Effective          map[string]float64 `json:"effective"`
	Combat             Combat             `json:"combat"`
}

// Character is the persisted view of a character. Big values stay decimal strings.
type Character struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Experience     int64  `json:"experience"`
	UnspentPoints  int    `json:"unspent_points"`
	UnspentParagon string `json:"unspent_paragon"`
	Revision       int64  `json:"revision"`
}

// LevelUp reports what an experience award paid for.
type LevelUp struct {
	LevelsGained int `json:"levels_gained"`
	StatPoints   int `json:"stat_points"`
}

// Mutation is the response to every progression action.
type Mutation struct {
	Character Character `json:"character"`
	Sheet     Sheet     `json:"sheet"`
	LevelUp   *LevelUp  `json:"level_up"`
}

// Health is the server health report.
type Health struct {
	Status        string `json:"status"`
	SchemaVersion int64  `json:"schema_version"`
	Totals        struct {
		Accounts   int `json:"accounts"`
		Characters int `json:"characters"`
	} `json:"totals"`
}

// Event is one message pushed over the socket.
type Event struct {
	Type        string `json:"type"`
	CharacterID int64  `json:"character_id"`
	Revision    int64  `json:"revision"`
	Sheet       *Sheet `json:"sheet"`
}

// NewTestClientRaw creates an unauthenticated client.
func NewTestClientRaw(baseURL string) *TestClient {
	return &TestClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		done:    make(chan struct{}),
	}
}

// NewTestClient registers a fresh account named after the client and logs in.
// This is the primary way to create test clients - each gets a unique account.
func NewTestClient(name string, baseURL string) (*TestClient, error) {
	creds := Credentials{Username: name, Password: name + "-Pass123"}
	client := NewTestClientRaw(baseURL)
	client.Name = name
	if err := client.Register(creds.Username, creds.Password); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	if err := client.Login(creds.Username, creds.Password); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return client, nil
}

// NewTestClientWithLogin logs in to an existing account.
func NewTestClientWithLogin(creds Credentials, baseURL string) (*TestClient, error) {
	client := NewTestClientRaw(baseURL)
	client.Name = creds.Username
	if err := client.Login(creds.Username, creds.Password); err != nil {
		return nil, err
	}
	return client, nil
}

// Do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *TestClient) Do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Register creates an account.
func (c *TestClient) Register(username, password string) error {
	return c.Do(http.MethodPost, "/api/accounts", map[string]string{"username": username, "password": password}, nil)
}

// Login opens a session and uses its token for later requests.
func (c *TestClient) Login(username, password string) error {
	var sess struct {
		Token     string `json:"token"`
		AccountID int64  `json:"account_id"`
	}
	if err := c.Do(http.MethodPost, "/api/sessions", map[string]string{"username": username, "password": password}, &sess); err != nil {
		return err
	}
	c.token = sess.Token
	c.AccountID = sess.AccountID
	return nil
}

// ChangePassword replaces the logged-in account's password.
func (c *TestClient) ChangePassword(oldPassword, newPassword string) error {
	return c.Do(http.MethodPut, "/api/accounts/password",
		map[string]string{"old_password": oldPassword, "new_password": newPassword}, nil)
}

// Health fetches the health report.
func (c *TestClient) Health() (*Health, error) {
	var h Health
	return &h, c.Do(http.MethodGet, "/healthz", nil, &h)
}

// CreateCharacter creates a character on the client's account.
func (c *TestClient) CreateCharacter(name string) (*Character, error) {
	var char Character
	return &char, c.Do(http.MethodPost, "/api/characters", map[string]string{"name": name}, &char)
}

// Characters lists the account's characters.
func (c *TestClient) Characters() ([]Character, error) {
	var chars []Character
	return chars, c.Do(http.MethodGet, "/api/characters", nil, &chars)
}

// DeleteCharacter removes a character.
func (c *TestClient) DeleteCharacter(id int64) error {
	return c.Do(http.MethodDelete, characterPath(id, ""), nil, nil)
}

// Sheet fetches the computed sheet of a character.
func (c *TestClient) Sheet(id int64) (*Sheet, error) {
	var resp struct {
		Sheet Sheet `json:"sheet"`
	}
	return &resp.Sheet, c.Do(http.MethodGet, characterPath(id, "/sheet"), nil, &resp)
}

// Preview computes a sheet for an arbitrary snapshot without saving anything.
func (c *TestClient) Preview(snapshot any) (*Sheet, error) {
	var sheet Sheet
	return &sheet, c.Do(http.MethodPost, "/api/preview", map[string]any{"snapshot": snapshot}, &sheet)
}

// GainExperience awards XP.
func (c *TestClient) GainExperience(id, amount int64) (*Mutation, error) {
	return c.mutate(id, "/experience", map[string]any{"amount": amount})
}

// Allocate spends stat points on a base value.
func (c *TestClient) Allocate(id int64, stat string, points int) (*Mutation, error) {
	return c.mutate(id, "/allocate", map[string]any{"stat": stat, "points": points})
}

// TierUp raises the tier of a capped stat.
func (c *TestClient) TierUp(id int64, stat string) (*Mutation, error) {
	return c.mutate(id, "/tier-up", map[string]any{"stat": stat})
}

// Prestige resets a max-level character into the next prestige.
func (c *TestClient) Prestige(id int64) (*Mutation, error) {
	return c.mutate(id, "/prestige", nil)
}

// AllocateParagon spends paragon points. points is a decimal string.
func (c *TestClient) AllocateParagon(id int64, stat, points string) (*Mutation, error) {
	return c.mutate(id, "/paragon", map[string]any{"stat": stat, "points": points})
}

// Equip adds a gear bonus. bonus is a decimal string.
func (c *TestClient) Equip(id int64, stat, bonus string) (*Mutation, error) {
	return c.mutate(id, "/equip", map[string]any{"stat": stat, "bonus": bonus})
}

// Unequip removes a gear bonus. bonus is a decimal string.
func (c *TestClient) Unequip(id int64, stat, bonus string) (*Mutation, error) {
	return c.mutate(id, "/unequip", map[string]any{"stat": stat, "bonus": bonus})
}

func (c *TestClient) mutate(id int64, action string, body any) (*Mutation, error) {
	var m Mutation
	if err := c.Do(http.MethodPost, characterPath(id, action), body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func characterPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/characters/%d%s", id, suffix)
}

// ConnectEvents opens the push socket and starts buffering its events.
func (c *TestClient) ConnectEvents() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	// Start reading messages in background
	go c.readMessages()
	return nil
}

// readMessages continuously reads events from the socket
func (c *TestClient) readMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		c.mu.Lock()
		c.messages = append(c.messages, ev)
		c.mu.Unlock()
	}
}

// GetMessages returns all received events
func (c *TestClient) GetMessages() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Event, len(c.messages))
	copy(result, c.messages)
	return result
}

// ClearMessages clears the event buffer
func (c *TestClient) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// WaitForMessage waits for an event of the given type matching match (nil
// matches any) and returns it.
func (c *TestClient) WaitForMessage(eventType string, match func(Event) bool, timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range c.GetMessages() {
			if ev.Type == eventType && (match == nil || match(ev)) {
				return ev, true
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return Event{}, false
}

// Close closes the socket if one is open
func (c *TestClient) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
