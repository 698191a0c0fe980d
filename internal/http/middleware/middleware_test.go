package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teos_mining/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type staticAuth struct {
	token string
	id    uuid.UUID
}

func (a staticAuth) Authenticate(ctx context.Context, token string) (*service.TokenClaims, error) {
	if token != a.token {
		return nil, errors.New("bad token")
	}
	return &service.TokenClaims{AccountID: a.id}, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestJWTMiddleware(t *testing.T) {
	auth := staticAuth{token: "good", id: uuid.New()}
	r := newRouter()
	r.GET("/me", JWT(auth), func(c *gin.Context) {
		id, ok := AccountID(c)
		if !ok || id != auth.id || Token(c) != "good" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"good", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, w.Code)
		}
	}
}

func TestAdminToken(t *testing.T) {
	r := newRouter()
	r.GET("/admin", AdminToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/disabled", AdminToken(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tc := range []struct {
		path, token string
		want        int
	}{
		{"/admin", "", http.StatusUnauthorized},
		{"/admin", "wrong", http.StatusUnauthorized},
		{"/admin", "s3cret", http.StatusOK},
		{"/disabled", "", http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set(AdminTokenHeader, tc.token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s with %q: expected %d, got %d", tc.path, tc.token, tc.want, w.Code)
		}
	}
}

func TestSimpleRateLimit(t *testing.T) {
	r := newRouter()
	r.GET("/x", SimpleRateLimit("test", 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		want := http.StatusOK
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, w.Code)
		}
	}
}

func TestClaimRateLimitRequiresAccount(t *testing.T) {
	r := newRouter()
	r.POST("/claim", ClaimRateLimit(1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/claim", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without account, got %d", w.Code)
	}
}

func TestClaimRateLimitPerAccount(t *testing.T) {
	r := newRouter()
	r.POST("/claim", func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-Account"))
		if err != nil {
			t.Errorf("bad account header: %v", err)
			return
		}
		c.Set(accountIDKey, id)
	}, ClaimRateLimit(2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	claim := func(id uuid.UUID) int {
		req := httptest.NewRequest(http.MethodPost, "/claim", nil)
		req.Header.Set("X-Account", id.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	alice, bob := uuid.New(), uuid.New()
	for i := 0; i < 2; i++ {
		if code := claim(alice); code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, code)
		}
	}
	if code := claim(alice); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", code)
	}
	if code := claim(bob); code != http.StatusOK {
		t.Fatalf("another account must not share the limit, got %d", code)
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if _, err := uuid.Parse(w.Header().Get(RequestIDHeader)); err != nil {
		t.Fatalf("expected generated request id, got %q", w.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}
}
