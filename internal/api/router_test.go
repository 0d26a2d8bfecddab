package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/isdelr/iserve-be/internal/auth"
	"github.com/isdelr/iserve-be/internal/mail"
	"github.com/isdelr/iserve-be/internal/metrics"
	"github.com/isdelr/iserve-be/internal/repository"
	"github.com/isdelr/iserve-be/internal/services"
	"github.com/isdelr/iserve-be/internal/testutil"
	"github.com/isdelr/iserve-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureMailer struct {
	sent chan mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent <- msg
	return nil
}

type testServer struct {
	*httptest.Server
	mailer *captureMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	tokens, err := auth.NewTokenIssuer("router-secret", time.Hour)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	events := services.NewEventService(repository.NewEventRepository(db), hub)
	users := services.NewUserService(services.UserServiceOptions{
		Users:       repository.NewUserRepository(db),
		Hasher:      auth.NewHasher(bcrypt.MinCost),
		Tokens:      tokens,
		Events:      events,
		Metrics:     rec,
		CountryCode: "+94",
	})
	mailer := &captureMailer{sent: make(chan mail.Message, 1)}

	router := NewRouter(RouterConfig{
		Hub:             hub,
		Tokens:          tokens,
		UserService:     users,
		EventService:    events,
		FeedbackService: services.NewFeedbackService(mailer, "noreply@iserve.test", "support@iserve.test", rec),
		Metrics:         metrics.Handler(reg),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, string(body))
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) register(t *testing.T, email, password string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/user", "", map[string]string{
		"username":   "sachin",
		"email":      email,
		"password":   password,
		"profession": "engineer",
		"contact":    "771234567",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
}

func TestRouter_RegisterLoginScenario(t *testing.T) {
	s := newTestServer(t)

	s.register(t, "a@x.com", "secret1")

	status, body := s.do(t, http.MethodPost, "/api/user", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"This email has already been used!"}`, string(body))

	s.login(t, "a@x.com", "secret1")

	wrongStatus, wrongBody := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	missStatus, missBody := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "nobody@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, wrongStatus)
	assert.Equal(t, wrongStatus, missStatus)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, string(wrongBody))
	assert.Equal(t, string(wrongBody), string(missBody))
}

func TestRouter_LoginSetsCookie(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "secret1")

	resp, err := s.Client().Post(s.URL+"/api/login", "application/json",
		strings.NewReader(`{"email":"a@x.com","password":"secret1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			found = true
			assert.True(t, c.HttpOnly)
			assert.NotEmpty(t, c.Value)
		}
	}
	assert.True(t, found)
}

func TestRouter_InvalidBodies(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/user", "/api/login"} {
		resp, err := s.Client().Post(s.URL+path, "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}

	status, _ := s.do(t, http.MethodPost, "/api/user", "", map[string]string{"email": "bad", "password": "p"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/users", "/api/users/a@x.com", "/api/users/a@x.com/phone", "/api/me", "/api/events"} {
		status, _ := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}
}

func TestRouter_ProfileNeverExposesHash(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	status, body := s.do(t, http.MethodGet, "/api/users/a@x.com", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"username":"sachin","profession":"engineer","contact":"+94771234567"}`, string(body))

	status, body = s.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "$2a$")
	assert.NotContains(t, strings.ToLower(string(body)), "password")

	status, body = s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "$2a$")

	status, body = s.do(t, http.MethodGet, "/api/users/a@x.com/phone", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"phone":"+94771234567"}`, string(body))

	status, _ = s.do(t, http.MethodGet, "/api/users/nobody@x.com", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_EmailPathIsDecodedOnce(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a%41@x.com", "secret1")
	s.register(t, "aa@x.com", "secret1")
	token := s.login(t, "a%41@x.com", "secret1")

	status, body := s.do(t, http.MethodPut, "/api/users/a%2541@x.com", token, map[string]string{"profession": "doctor"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = s.do(t, http.MethodGet, "/api/users/a%2541@x.com", token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"profession":"doctor"`)

	status, body = s.do(t, http.MethodGet, "/api/users/aa@x.com", token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"profession":"engineer"`)

	status, body = s.do(t, http.MethodPut, "/api/user/a%2541@x.com/password", token, map[string]string{"newPassword": "secret2"})
	require.Equal(t, http.StatusOK, status, string(body))
	s.login(t, "a%41@x.com", "secret2")
	s.login(t, "aa@x.com", "secret1")

	// An escaped "@" makes the request carry a RawPath.
	status, body = s.do(t, http.MethodGet, "/api/users/aa%40x.com", token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"profession":"engineer"`)
}

func TestRouter_UpdateAndChangePassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "secret1")
	s.register(t, "b@x.com", "secret1")
	tokenA := s.login(t, "a@x.com", "secret1")
	tokenB := s.login(t, "b@x.com", "secret1")

	status, body := s.do(t, http.MethodPut, "/api/users/a@x.com", tokenA, map[string]string{"profession": "doctor"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"message":"User details updated successfully"}`, string(body))

	status, _ = s.do(t, http.MethodPut, "/api/users/a@x.com", tokenB, map[string]string{"profession": "thief"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPut, "/api/user/a@x.com/password", tokenB, map[string]string{"newPassword": "hijack"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPut, "/api/user/nobody@x.com/password", tokenA, map[string]string{"newPassword": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodPut, "/api/user/a@x.com/password", tokenA, map[string]string{"newPassword": "secret2"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"message":"Password changed successfully"}`, string(body))

	status, _ = s.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	s.login(t, "a@x.com", "secret2")
}

func TestRouter_EventsAreScopedToCaller(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "secret1")
	s.register(t, "b@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	status, body := s.do(t, http.MethodGet, "/api/events?limit=50", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "a@x.com")
	assert.NotContains(t, string(body), "b@x.com")
}

func TestRouter_Feedback(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/send-email", "", map[string]string{"subject": "UI", "feedback": "Nice"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Thanks for sharing your feedback with us..", string(body))

	msg := <-s.mailer.sent
	assert.Equal(t, "Feedback: UI", msg.Subject)

	status, _ = s.do(t, http.MethodPost, "/api/send-email", "", map[string]string{"subject": "UI"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "secret1")

	status, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))

	status, body = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `iserve_registrations_total{outcome="success"} 1`)
}

func TestRouter_WebsocketStreamsOwnEvents(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws/events"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var pong websocket.Message
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Action)

	// Registration is complete once the pong arrives, so this login event
	// must be pushed to the connection.
	s.login(t, "a@x.com", "secret1")

	var msg struct {
		Action  string `json:"action"`
		Payload struct {
			Type string `json:"type"`
		} `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Action)
	assert.Equal(t, services.EventUserLogin, msg.Payload.Type)
}

func TestRouter_WebsocketRequiresToken(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws/events"
	_, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
