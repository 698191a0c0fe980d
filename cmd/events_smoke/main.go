package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"teos_mining/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// events_smoke signs up a fresh account against a running server,
// completes verification, opens /ws, claims and waits for the pushes.
func main() {
	base := flag.String("base", "", "server base url (default http://127.0.0.1:$APP_PORT)")
	flag.Parse()

	if *base == "" {
		port := os.Getenv("APP_PORT")
		if port == "" {
			port = "8080"
		}
		// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
		*base = "http://127.0.0.1:" + port
	}

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	password := "smokepass123"

	mustPost(*base+"/api/v1/auth/signup", "", map[string]string{"email": email, "password": password}, nil)

	var signin struct {
		Token string `json:"token"`
	}
	mustPost(*base+"/api/v1/auth/signin", "", map[string]string{"email": email, "password": password}, &signin)

	for _, step := range []string{"telegram_joined", "facebook_followed", "x_followed", "petition_signed"} {
		mustPost(*base+"/api/v1/verification/"+step, signin.Token, nil, nil)
	}

	wsURL := "ws" + (*base)[len("http"):] + "/ws?token=" + signin.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatal("dial ws", "error", err)
	}
	defer conn.Close()

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil || first["type"] != "ready" {
		logger.Fatal("expected ready frame", "frame", first, "error", err)
	}

	var claim map[string]any
	mustPost(*base+"/api/v1/mining/claim", signin.Token, nil, &claim)
	fmt.Printf("claim: %v\n", claim["credited"])

	deadline := time.Now().Add(5 * time.Second)
	for got := 0; got < 3; got++ {
		_ = conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Fatal("waiting for claim push", "received", got, "error", err)
		}
		fmt.Printf("push: %v\n", msg)
	}
	fmt.Println("smoke OK")
}

func mustPost(url, token string, body any, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			logger.Fatal("encode body", "error", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		logger.Fatal("build request", "url", url, "error", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Fatal("request failed", "url", url, "error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Fatal("unexpected status", "url", url, "status", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			logger.Fatal("decode response", "url", url, "error", err)
		}
	}
}
