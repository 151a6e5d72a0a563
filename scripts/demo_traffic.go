package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

type httpError struct {
	StatusCode int
	body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.body)
}

type client struct {
	baseURL   string
	header    string
	sessionID string
	http      *http.Client
}

func main() {
	baseURL := pflag.String("base-url", "http://localhost:8080", "API base URL")
	header := pflag.String("session-header", "", "session header configured on the server; native session login when empty")
	sessionID := pflag.String("session-id", "", "session id to send in the header (random when empty)")
	endpoint := pflag.String("endpoint", "/trace-lens/logs", "trace-lens endpoint path")
	tail := pflag.Duration("tail", 5*time.Second, "how long to follow the log stream")
	pflag.Parse()

	jar, _ := cookiejar.New(nil)
	c := &client{baseURL: *baseURL, header: *header, sessionID: *sessionID, http: &http.Client{Jar: jar}}
	if c.header != "" && c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}
	if c.header == "" {
		var resp struct {
			SessionID string `json:"sessionId"`
		}
		if err := c.do(http.MethodPost, "/api/test/session", nil, &resp); err != nil {
			log.Fatalf("open native session: %v", err)
		}
		c.sessionID = resp.SessionID
	}
	log.Printf("driving traffic for session %s", c.sessionID)

	ctx, cancel := context.WithTimeout(context.Background(), *tail)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.follow(ctx, *endpoint+"/stream"); err != nil && ctx.Err() == nil {
			log.Printf("stream ended: %v", err)
		}
	}()

	calls := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, "/api/test/simple", nil},
		{http.MethodGet, "/api/test/multi-log", nil},
		{http.MethodPost, "/api/payment/process", map[string]interface{}{"amount": 12000, "method": "card", "card_number": "4111111111111111"}},
		{http.MethodPost, "/api/payment/process", map[string]interface{}{"amount": 5000, "method": "card", "card_number": "4111000011111111"}},
		{http.MethodPost, "/api/mail/send", map[string]string{"to": "demo@example.com", "subject": "hello", "body": "<b>hi</b>"}},
		{http.MethodPost, "/api/mail/send", map[string]string{"to": "fail@example.com", "subject": "hello", "body": "x"}},
		{http.MethodGet, "/api/test/error", nil},
	}
	for _, call := range calls {
		if err := c.do(call.method, call.path, call.body, nil); err != nil {
			log.Printf("%s %s: %v", call.method, call.path, err)
		}
	}
	<-done
}

// follow prints stream events until ctx ends.
func (c *client) follow(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.decorate(req)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return &httpError{StatusCode: resp.StatusCode, body: string(b)}
	}
	scanner := bufio.NewScanner(resp.Body)
	event := ""
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line, "data:"))
		case line == "":
			if event != "heartbeat" {
				fmt.Printf("%-9s %s\n", event, strings.Join(data, "\n          "))
			}
			event, data = "", nil
		}
	}
	return scanner.Err()
}

func (c *client) decorate(req *http.Request) {
	if c.header != "" {
		req.Header.Set(c.header, c.sessionID)
	}
}

func (c *client) do(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &httpError{StatusCode: resp.StatusCode, body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
