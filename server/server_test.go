package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Kalantar81/window-counter/pkg/config"
	"github.com/Kalantar81/window-counter/pkg/protocol"
)

const testReadTimeout = 2 * time.Second

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Database.Enabled = false

	s := NewServer(cfg)
	ts := httptest.NewServer(s.buildRouter())
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialClient(t *testing.T, ts *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws?clientId="+clientID), nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readStateUpdate(t *testing.T, ws *websocket.Conn) protocol.StateUpdateMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(testReadTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg protocol.StateUpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	if msg.Type != protocol.MsgTypeStateUpdate {
		t.Fatalf("Expected stateUpdate, got %s", msg.Type)
	}
	return msg
}

// TestNewServer tests server creation with storage disabled
func TestNewServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.Database.Enabled = false

	s := NewServer(cfg)
	if s == nil {
		t.Fatal("Server should not be nil")
	}
	if s.hub == nil {
		t.Error("Hub should be initialized")
	}
	if s.dispatcher == nil {
		t.Error("Dispatcher should be initialized")
	}
	if s.store != nil {
		t.Error("Store should be nil when history is disabled")
	}
}

// TestWebSocketRejectsMissingClientID tests the 1008 policy close
func TestWebSocketRejectsMissingClientID(t *testing.T) {
	s, ts := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws"), nil)
	if err != nil {
		t.Fatalf("Upgrade should succeed before the policy close: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(testReadTimeout))
	_, _, err = ws.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("Expected a close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("Expected close code 1008, got %d", closeErr.Code)
	}
	if closeErr.Text != "Client ID is required" {
		t.Errorf("Unexpected close reason: %q", closeErr.Text)
	}

	if s.hub.ClientCount() != 0 {
		t.Error("Rejected connection must not be registered")
	}
}

// TestWebSocketConnectBroadcastsSnapshot tests the snapshot sent on connect
func TestWebSocketConnectBroadcastsSnapshot(t *testing.T) {
	_, ts := newTestServer(t)

	ws := dialClient(t, ts, "c1")
	msg := readStateUpdate(t, ws)

	if len(msg.State) != 1 {
		t.Fatalf("Expected 1 entry in snapshot, got %d", len(msg.State))
	}
	state := msg.State[0]
	if state.ClientID != "c1" {
		t.Errorf("Expected clientId c1, got %s", state.ClientID)
	}
	if !state.IsVisible {
		t.Error("New client should default to visible")
	}
	if state.TabLocation != protocol.DefaultTabLocation {
		t.Errorf("Expected default tab location, got %s", state.TabLocation)
	}
}

// TestWebSocketUpdateState tests a full message round trip
func TestWebSocketUpdateState(t *testing.T) {
	_, ts := newTestServer(t)

	ws := dialClient(t, ts, "c1")
	readStateUpdate(t, ws) // connect snapshot

	update := `{"type":"updateState","state":{"clientId":"c1","tabId":"t1","isVisible":true,"lastUpdated":100,"lastVisibilityChange":90,"tabLocation":"map"}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(update)); err != nil {
		t.Fatalf("Failed to send update: %v", err)
	}

	msg := readStateUpdate(t, ws)
	if msg.State[0].TabLocation != "map" || msg.State[0].LastUpdated != 100 {
		t.Errorf("Broadcast should carry the applied state, got %+v", msg.State[0])
	}
}

// TestWebSocketSurvivesMalformedMessage tests that bad input is dropped
func TestWebSocketSurvivesMalformedMessage(t *testing.T) {
	_, ts := newTestServer(t)

	ws := dialClient(t, ts, "c1")
	readStateUpdate(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{not json`)); err != nil {
		t.Fatalf("Failed to send malformed message: %v", err)
	}

	// The connection stays up; a valid message afterwards still applies.
	update := `{"type":"updateState","state":{"clientId":"c1","isVisible":true,"lastUpdated":7,"tabLocation":"map"}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(update)); err != nil {
		t.Fatalf("Failed to send update after malformed message: %v", err)
	}

	msg := readStateUpdate(t, ws)
	if msg.State[0].LastUpdated != 7 {
		t.Errorf("Valid message after a malformed one should apply, got %+v", msg.State[0])
	}
}

// TestStateEndpoint tests GET /api/state
func TestStateEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	ws := dialClient(t, ts, "c1")
	readStateUpdate(t, ws)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		State []protocol.TabState `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode state response: %v", err)
	}
	if len(body.State) != 1 || body.State[0].ClientID != "c1" {
		t.Errorf("Unexpected state payload: %+v", body.State)
	}
}

// TestStateEndpointEmpty tests the empty registry shape
func TestStateEndpointEmpty(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		State []protocol.TabState `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode state response: %v", err)
	}
	if body.State == nil || len(body.State) != 0 {
		t.Errorf("Empty registry should return an empty list, got %+v", body.State)
	}
}

// TestLocationEndpointNoTarget tests the routing miss outcome
func TestLocationEndpointNoTarget(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/location", "application/json",
		strings.NewReader(`{"latitude":40.7,"longitude":-74.0}`))
	if err != nil {
		t.Fatalf("Failed to post location: %v", err)
	}
	defer resp.Body.Close()

	// A miss is a normal outcome, not an HTTP error.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body LocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Success {
		t.Error("Routing miss should report success=false")
	}
	if body.Message != "No visible clients found on map tab" {
		t.Errorf("Unexpected miss message: %q", body.Message)
	}
}

// TestLocationEndpointInvalidBody tests payload validation
func TestLocationEndpointInvalidBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/location", "application/json",
		strings.NewReader(`{broken`))
	if err != nil {
		t.Fatalf("Failed to post location: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid payload, got %d", resp.StatusCode)
	}
}

// TestLocationEndpointDelivery tests end-to-end routing over the websocket
func TestLocationEndpointDelivery(t *testing.T) {
	_, ts := newTestServer(t)

	ws := dialClient(t, ts, "c1")
	readStateUpdate(t, ws)

	update := `{"type":"updateState","state":{"clientId":"c1","isVisible":true,"lastUpdated":100,"tabLocation":"map"}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(update)); err != nil {
		t.Fatalf("Failed to send update: %v", err)
	}
	readStateUpdate(t, ws) // update broadcast

	payload := `{"latitude":51.5,"longitude":-0.1,"label":"HQ"}`
	resp, err := http.Post(ts.URL+"/api/location", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Failed to post location: %v", err)
	}
	defer resp.Body.Close()

	var body LocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !body.Success || body.TargetClient != "c1" {
		t.Fatalf("Expected delivery to c1, got %+v", body)
	}
	if body.Message != "Location data sent to client c1" {
		t.Errorf("Unexpected delivery message: %q", body.Message)
	}

	ws.SetReadDeadline(time.Now().Add(testReadTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read routed location: %v", err)
	}
	var msg protocol.DrawLocationMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Failed to decode drawLocation: %v", err)
	}
	if msg.Type != protocol.MsgTypeDrawLocation {
		t.Errorf("Expected drawLocation, got %s", msg.Type)
	}
	if string(msg.LocationData) != payload {
		t.Errorf("Location payload must arrive verbatim, got %s", msg.LocationData)
	}
}

// TestHealthEndpoint tests GET /api/health
func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("Failed to get health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", body.Status)
	}
}

// TestHistoryEndpointUnavailable tests GET /api/history without a store
func TestHistoryEndpointUnavailable(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/history")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when history is disabled, got %d", resp.StatusCode)
	}
}

// TestDisconnectRemovesClient tests registry cleanup on close
func TestDisconnectRemovesClient(t *testing.T) {
	s, ts := newTestServer(t)

	ws := dialClient(t, ts, "c1")
	readStateUpdate(t, ws)

	ws2 := dialClient(t, ts, "c2")
	readStateUpdate(t, ws2)
	readStateUpdate(t, ws) // c1 observes c2 arriving

	ws2.Close()

	// c1 observes c2 departing.
	msg := readStateUpdate(t, ws)
	if len(msg.State) != 1 || msg.State[0].ClientID != "c1" {
		t.Errorf("Departure broadcast should carry only c1, got %+v", msg.State)
	}
	if s.hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client after disconnect, got %d", s.hub.ClientCount())
	}
}
