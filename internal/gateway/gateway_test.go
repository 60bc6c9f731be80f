package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/workmate/internal/config"
	"github.com/ziadkadry99/workmate/internal/llm"
)

func userMsg(s string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: s}}
}

// deadURL returns the address of a server that has already shut down.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newProxyServer(t *testing.T, healthy bool, reply string) (*httptest.Server, *[]Request) {
	t.Helper()
	var got []Request
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req Request
		json.NewDecoder(r.Body).Decode(&req)
		got = append(got, req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": reply}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &got
}

func newFunctionServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &authHeader
}

func TestWebFallbackWhenNothingReachable(t *testing.T) {
	cfg := config.GatewayConfig{
		Platform:      config.PlatformWeb,
		ProxyURL:      deadURL(t),
		FunctionURL:   deadURL(t),
		HealthTimeout: 200 * time.Millisecond,
	}
	g, err := New(cfg, "claude-sonnet-4-5-20250929", 1024, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	question := "How should we split the Q3 launch milestones across the team?"
	reply, err := g.Exchange(context.Background(), userMsg(question))
	if err != nil {
		t.Fatalf("web gateway must not error on exhaustion: %v", err)
	}
	if !reply.Fallback {
		t.Error("expected fallback reply")
	}
	if !strings.Contains(reply.Content, question) {
		t.Errorf("fallback text does not quote the question: %q", reply.Content)
	}
	if reply.Content != FallbackMessage(question) {
		t.Error("fallback text is not deterministic")
	}
}

func TestWebPrefersProxy(t *testing.T) {
	proxy, got := newProxyServer(t, true, "from proxy")
	fn, _ := newFunctionServer(t, http.StatusOK, `{"success":true,"content":"from function"}`)

	cfg := config.GatewayConfig{Platform: config.PlatformWeb, ProxyURL: proxy.URL, FunctionURL: fn.URL}
	g, err := New(cfg, "m1", 512, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := g.Exchange(context.Background(), userMsg("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Content != "from proxy" || reply.Strategy != "proxy" {
		t.Errorf("reply = %+v", reply)
	}
	if len(*got) != 1 || (*got)[0].Model != "m1" || (*got)[0].MaxTokens != 512 {
		t.Errorf("proxy received %+v", *got)
	}
}

func TestWebFallsThroughUnhealthyProxy(t *testing.T) {
	proxy, got := newProxyServer(t, false, "unused")
	fn, auth := newFunctionServer(t, http.StatusOK, `{"success":true,"content":"from function"}`)

	cfg := config.GatewayConfig{
		Platform:    config.PlatformWeb,
		ProxyURL:    proxy.URL,
		FunctionURL: fn.URL,
		FunctionKey: "fn-key",
	}
	g, _ := New(cfg, "m", 0, nil, nil)

	reply, err := g.Exchange(context.Background(), userMsg("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Strategy != "function" || reply.Content != "from function" {
		t.Errorf("reply = %+v", reply)
	}
	if len(*got) != 0 {
		t.Error("unhealthy proxy should not receive the chat request")
	}
	if *auth != "Bearer fn-key" {
		t.Errorf("Authorization = %q", *auth)
	}
}

func TestFunctionFailureFlag(t *testing.T) {
	fn, _ := newFunctionServer(t, http.StatusOK, `{"success":false,"error":"quota"}`)
	s := NewFunctionStrategy(fn.URL, "", nil)

	_, err := s.Send(context.Background(), Request{Messages: userMsg("hi")})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestFunctionUnauthorized(t *testing.T) {
	fn, _ := newFunctionServer(t, http.StatusUnauthorized, `{}`)
	s := NewFunctionStrategy(fn.URL, "bad", nil)

	_, err := s.Send(context.Background(), Request{Messages: userMsg("hi")})
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestProxyHealthTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	p := NewProxyStrategy(srv.URL, 50*time.Millisecond, nil)
	start := time.Now()
	if p.Available(context.Background()) {
		t.Error("slow proxy reported available")
	}
	if time.Since(start) > time.Second {
		t.Error("health check ignored its timeout")
	}
}

func TestProxyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	}))
	defer srv.Close()

	_, err := NewProxyStrategy(srv.URL, 0, nil).Send(context.Background(), Request{Messages: userMsg("x")})
	if !errors.Is(err, ErrNetwork) || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNativeDirectSuccess(t *testing.T) {
	mock := &fakeProvider{content: "direct answer"}
	g, err := New(config.GatewayConfig{Platform: config.PlatformNative}, "m", 256, mock, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := g.Send(context.Background(), userMsg("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "direct answer" {
		t.Errorf("got %q", got)
	}
	if len(mock.calls) != 1 || mock.calls[0].MaxTokens != 256 {
		t.Errorf("provider saw %+v", mock.calls)
	}
}

func TestNativeFailureIsError(t *testing.T) {
	mock := &fakeProvider{err: errors.New("connection reset")}
	g, _ := New(config.GatewayConfig{Platform: config.PlatformNative}, "m", 0, mock, nil)

	_, err := g.Send(context.Background(), userMsg("hello"))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestNativeMissingKey(t *testing.T) {
	g, _ := New(config.GatewayConfig{Platform: config.PlatformNative}, "m", 0, nil, nil)

	_, err := g.Send(context.Background(), userMsg("hello"))
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}

	keyless := llm.NewAnthropicProvider("", "m")
	g, _ = New(config.GatewayConfig{Platform: config.PlatformNative}, "m", 0, keyless, nil)
	if _, err := g.Send(context.Background(), userMsg("hello")); !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication for empty key, got %v", err)
	}
}

func TestNativeRejectedKey(t *testing.T) {
	mock := &fakeProvider{err: fmt.Errorf("anthropic: %w (authentication_error: bad key)", llm.ErrUnauthorized)}
	g, _ := New(config.GatewayConfig{Platform: config.PlatformNative}, "m", 0, mock, nil)

	if _, err := g.Send(context.Background(), userMsg("hello")); !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestNewConfigurationErrors(t *testing.T) {
	if _, err := New(config.GatewayConfig{Platform: config.PlatformWeb}, "m", 0, nil, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("web without transports: %v", err)
	}
	if _, err := New(config.GatewayConfig{Platform: "desktop"}, "m", 0, nil, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown platform: %v", err)
	}
}

type fakeProvider struct {
	content string
	err     error
	calls   []llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

type stubStrategy struct {
	name      string
	available bool
	reply     string
	err       error
	calls     int
}

func (s *stubStrategy) Name() string                       { return s.name }
func (s *stubStrategy) Available(ctx context.Context) bool { return s.available }
func (s *stubStrategy) Send(ctx context.Context, r Request) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestNewBoundsSendTime(t *testing.T) {
	g, err := New(config.GatewayConfig{
		Platform:    config.PlatformWeb,
		ProxyURL:    "http://localhost:3001",
		FunctionURL: "https://fn.example.com/chat",
	}, "m", 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	proxy, ok := g.strategies[0].(*ProxyStrategy)
	if !ok {
		t.Fatalf("first strategy = %T", g.strategies[0])
	}
	fn, ok := g.strategies[1].(*FunctionStrategy)
	if !ok {
		t.Fatalf("second strategy = %T", g.strategies[1])
	}
	if proxy.client.Timeout != DefaultSendTimeout || fn.client.Timeout != DefaultSendTimeout {
		t.Errorf("client timeouts = %v, %v; want %v", proxy.client.Timeout, fn.client.Timeout, DefaultSendTimeout)
	}
}

func TestChainOrder(t *testing.T) {
	a := &stubStrategy{name: "a", available: false}
	b := &stubStrategy{name: "b", available: true, err: ErrNetwork}
	c := &stubStrategy{name: "c", available: true, reply: "ok"}
	d := &stubStrategy{name: "d", available: true, reply: "never"}

	g := NewGateway([]Strategy{a, b, c, d}, Options{}, nil)
	reply, err := g.Exchange(context.Background(), userMsg("q"))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Strategy != "c" {
		t.Errorf("answered by %q", reply.Strategy)
	}
	if a.calls != 0 || b.calls != 1 || d.calls != 0 {
		t.Errorf("calls a=%d b=%d d=%d", a.calls, b.calls, d.calls)
	}
	if got := strings.Join(g.Strategies(), ","); got != "a,b,c,d" {
		t.Errorf("Strategies() = %s", got)
	}
}

func TestNoStrategyAvailable(t *testing.T) {
	g := NewGateway([]Strategy{&stubStrategy{name: "a"}}, Options{}, nil)
	if _, err := g.Send(context.Background(), userMsg("q")); !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestFallbackMessageTruncates(t *testing.T) {
	long := strings.Repeat("é", 150)
	msg := FallbackMessage(long)
	if strings.Contains(msg, long) {
		t.Error("question was not truncated")
	}
	if !strings.Contains(msg, strings.Repeat("é", 100)+"...") {
		t.Error("expected first 100 runes followed by ellipsis")
	}
	if !strings.Contains(FallbackMessage(""), "workmate proxy") {
		t.Error("setup steps missing")
	}
}
