package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"teos_mining/internal/app"
	"teos_mining/internal/db"
	"teos_mining/internal/domain"
	"teos_mining/internal/events"
	httpserver "teos_mining/internal/http"
	"teos_mining/internal/http/handlers"
	"teos_mining/internal/repository"
	"teos_mining/internal/store"
	"teos_mining/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type stack struct {
	srv *httptest.Server
}

func startStack(t *testing.T, st store.Store) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	a := app.New(app.Deps{
		Store:         st,
		Bus:           events.NewMemoryBus().WithRetry(3, 10*time.Millisecond),
		JWTSecret:     "e2e-secret",
		PublicBaseURL: "https://teos.example",
	})
	a.Start(ctx)

	r := gin.New()
	httpserver.RegisterRoutes(r, a.Handler, handlers.NewHealthHandler(st, "e2e", nil), a.Hub, httpserver.Options{
		Version:         "e2e",
		APIRateLimit:    1000,
		APIRateWindow:   time.Minute,
		AuthRateLimit:   1000,
		AuthRateWindow:  time.Minute,
		ClaimRateLimit:  1000,
		ClaimRateWindow: time.Minute,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		a.Stop()
	})
	return &stack{srv: srv}
}

func (s *stack) post(t *testing.T, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return s.send(t, http.MethodPost, path, token, &buf)
}

func (s *stack) get(t *testing.T, path, token string) (int, map[string]any) {
	t.Helper()
	return s.send(t, http.MethodGet, path, token, nil)
}

func (s *stack) send(t *testing.T, method, path, token string, body *bytes.Buffer) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, s.srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, s.srv.URL+path, nil)
	}
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *stack) signIn(t *testing.T, email, ref string) string {
	t.Helper()
	if code, body := s.post(t, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "password": "password123", "referral_code": ref,
	}); code != http.StatusCreated {
		t.Fatalf("signup %s: %d %v", email, code, body)
	}
	code, body := s.post(t, "/api/v1/auth/signin", "", map[string]string{"email": email, "password": "password123"})
	if code != http.StatusOK {
		t.Fatalf("signin %s: %d %v", email, code, body)
	}
	return body["token"].(string)
}

func (s *stack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if m := readFrame(t, conn); m["type"] != "ready" {
		t.Fatalf("expected ready frame, got %v", m)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m map[string]any
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return m
}

func runClaimFlow(t *testing.T, s *stack) {
	suffix := uuid.NewString()[:8]

	referrerToken := s.signIn(t, "referrer-"+suffix+"@example.com", "")
	_, body := s.get(t, "/api/v1/referral/code", referrerToken)
	refCode, _ := body["code"].(string)
	if len(refCode) != 10 {
		t.Fatalf("unexpected referral code %v", body)
	}

	minerToken := s.signIn(t, "miner-"+suffix+"@example.com", refCode)
	for _, step := range domain.VerificationSteps {
		if code, body := s.post(t, "/api/v1/verification/"+string(step), minerToken, nil); code != http.StatusOK {
			t.Fatalf("verify %s: %d %v", step, code, body)
		}
	}

	minerWS := s.dial(t, minerToken)
	referrerWS := s.dial(t, referrerToken)

	code, body := s.post(t, "/api/v1/mining/claim", minerToken, nil)
	if code != http.StatusOK {
		t.Fatalf("claim: %d %v", code, body)
	}

	got := map[string]string{}
	for i := 0; i < 3; i++ {
		m := readFrame(t, minerWS)
		if m["type"] != "claim" {
			t.Fatalf("expected claim frame, got %v", m)
		}
		data := m["data"].(map[string]any)
		got[data["token"].(string)] = data["amount"].(string)
	}
	if got["TEOS"] != "12" || got["TUT"] != "6" || got["ERT"] != "3" {
		t.Fatalf("unexpected pushed credits %v", got)
	}

	m := readFrame(t, referrerWS)
	if m["type"] != "referral_bonus" {
		t.Fatalf("expected referral bonus frame, got %v", m)
	}
	if amount := m["data"].(map[string]any)["amount"]; amount != "0.6" {
		t.Fatalf("expected bonus 0.6, got %v", amount)
	}

	if code, _ := s.post(t, "/api/v1/mining/claim", minerToken, nil); code != http.StatusTooManyRequests {
		t.Fatalf("expected cooldown on second claim, got %d", code)
	}

	// the bus consumer replays the same event; the bonus must stay single
	time.Sleep(100 * time.Millisecond)
	_, body = s.get(t, "/api/v1/referral/stats", referrerToken)
	if stats, _ := body["stats"].(map[string]any); stats["bonus_earned"] != "0.6" {
		t.Fatalf("expected bonus_earned 0.6, got %v", body)
	}
	_, body = s.get(t, "/api/v1/me", referrerToken)
	if bal := body["balances"].(map[string]any); bal["TEOS"] != "0.6" {
		t.Fatalf("expected referrer TEOS 0.6, got %v", bal)
	}
}

func TestE2EClaimPushMemory(t *testing.T) {
	runClaimFlow(t, startStack(t, memstore.New()))
}

func TestE2EClaimPushPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool := db.Connect(context.Background(), dsn, true)
	st := repository.NewStore(pool)
	t.Cleanup(st.Close)

	runClaimFlow(t, startStack(t, st))
}
