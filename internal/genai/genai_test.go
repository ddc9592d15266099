package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

const completionBody = `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Bonjour, voici mon analyse."}}]}`

type capturedRequest struct {
	Path   string
	Auth   string
	Params struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Stream      bool    `json:"stream"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

// newCompletionServer returns a server answering every request with status and body.
func newCompletionServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	captured := &capturedRequest{}
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured.Params); err != nil {
			t.Errorf("server could not decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured, &hits
}

func newTestClient(srv *httptest.Server, key string) *Client {
	return NewClient(
		WithAPIKey(key),
		WithBaseURL(srv.URL+"/v1/"),
		WithHTTPClient(srv.Client()),
	)
}

func TestConverse_MissingAPIKey(t *testing.T) {
	srv, _, hits := newCompletionServer(t, http.StatusOK, completionBody)
	client := newTestClient(srv, "")

	_, err := client.Converse(context.Background(), nil, "Bonjour")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Errorf("expected no network call, got %d", *hits)
	}
}

func TestConverse_Success(t *testing.T) {
	srv, captured, _ := newCompletionServer(t, http.StatusOK, completionBody)
	client := newTestClient(srv, "secret")

	reply, err := client.Converse(context.Background(), nil, "Qu'est-ce qu'un licenciement économique ?")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reply != "Bonjour, voici mon analyse." {
		t.Errorf("unexpected reply %q", reply)
	}
	if !strings.HasSuffix(captured.Path, "/chat/completions") {
		t.Errorf("unexpected path %q", captured.Path)
	}
	if captured.Auth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", captured.Auth)
	}
	p := captured.Params
	if p.Model != DefaultModel || p.Temperature != DefaultTemperature || p.MaxTokens != DefaultMaxTokens || p.Stream {
		t.Errorf("unexpected request params: %+v", p)
	}
	if len(p.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(p.Messages))
	}
	if p.Messages[0].Role != "system" || p.Messages[0].Content != LegalSystemPrompt {
		t.Errorf("expected legal system prompt first, got role %q", p.Messages[0].Role)
	}
	if p.Messages[1].Role != "user" {
		t.Errorf("expected user message last, got %q", p.Messages[1].Role)
	}
}

func TestConverse_PriorHistoryKeptAndNotMutated(t *testing.T) {
	srv, captured, _ := newCompletionServer(t, http.StatusOK, completionBody)
	client := newTestClient(srv, "secret")

	prior := []models.Turn{
		{Role: models.RoleSystem, Content: "custom system"},
		{Role: models.RoleUser, Content: "première question"},
		{Role: models.RoleAssistant, Content: "première réponse"},
	}
	before := append([]models.Turn(nil), prior...)

	if _, err := client.Converse(context.Background(), prior, "deuxième question"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	msgs := captured.Params.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (no extra system prompt), got %d", len(msgs))
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("message %d: expected role %q, got %q", i, role, msgs[i].Role)
		}
	}
	if msgs[0].Content != "custom system" {
		t.Errorf("expected caller system prompt to be kept, got %q", msgs[0].Content)
	}
	for i := range before {
		if prior[i] != before[i] {
			t.Errorf("prior turn %d was modified", i)
		}
	}
	if len(prior) != len(before) {
		t.Errorf("prior length changed from %d to %d", len(before), len(prior))
	}
}

func TestConverse_ServerErrorIsTransportError(t *testing.T) {
	srv, _, _ := newCompletionServer(t, http.StatusInternalServerError, `{"error":{"message":"upstream exploded"}}`)
	client := newTestClient(srv, "secret")

	_, err := client.Converse(context.Background(), nil, "question")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", te.StatusCode)
	}
	if !strings.Contains(te.Body, "upstream exploded") {
		t.Errorf("expected body to be captured, got %q", te.Body)
	}
}

func TestConverse_PlainTextErrorBodyIsKept(t *testing.T) {
	srv, _, _ := newCompletionServer(t, http.StatusBadGateway, "upstream proxy said NOPE-12345")
	client := newTestClient(srv, "secret")

	_, err := client.Converse(context.Background(), nil, "question")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", te.StatusCode)
	}
	if te.Body != "upstream proxy said NOPE-12345" {
		t.Errorf("expected the raw body, got %q", te.Body)
	}
}

func TestConverse_NoChoicesIsMalformed(t *testing.T) {
	srv, _, _ := newCompletionServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[]}`)
	client := newTestClient(srv, "secret")

	_, err := client.Converse(context.Background(), nil, "question")
	var me *MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedResponseError, got %T: %v", err, err)
	}
}

func TestConverse_EmptyContentIsMalformed(t *testing.T) {
	srv, _, _ := newCompletionServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`)
	client := newTestClient(srv, "secret")

	_, err := client.Converse(context.Background(), nil, "question")
	var me *MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedResponseError, got %T: %v", err, err)
	}
}

func TestConverse_NetworkFailure(t *testing.T) {
	srv, _, _ := newCompletionServer(t, http.StatusOK, completionBody)
	client := newTestClient(srv, "secret")
	srv.Close()

	_, err := client.Converse(context.Background(), nil, "question")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != 0 {
		t.Errorf("expected status 0 for network failure, got %d", te.StatusCode)
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	reply, err := m.Converse(context.Background(), nil, "Merci de produire une ANALYSE de l'exploitation")
	if err != nil || reply != DefaultMockAnalysis {
		t.Errorf("expected canned analysis, got %q (%v)", reply, err)
	}
	reply, _ = m.Converse(context.Background(), nil, "autre chose")
	if reply != DefaultMockReply {
		t.Errorf("expected default reply, got %q", reply)
	}

	m.SetError(errors.New("forced"))
	if _, err := m.Converse(context.Background(), nil, "x"); err == nil {
		t.Error("expected forced error")
	}
	if len(m.Calls()) != 3 {
		t.Errorf("expected 3 recorded calls, got %d", len(m.Calls()))
	}
}

func TestMockClientOverlappingMatches(t *testing.T) {
	m := NewMockClient()
	m.SetResponse("sol", "réponse sol")
	m.SetResponse("analyse du sol", "réponse analyse du sol")
	m.SetResponse("eau", "réponse eau")
	m.SetResponse("pluie", "réponse pluie")

	// Repeat so an order-dependent lookup would show up.
	for i := 0; i < 50; i++ {
		if reply, _ := m.Converse(context.Background(), nil, "Analyse du sol et de l'eau"); reply != "réponse analyse du sol" {
			t.Fatalf("longest match should win, got %q", reply)
		}
		if reply, _ := m.Converse(context.Background(), nil, "eau de pluie"); reply != "réponse pluie" {
			t.Fatalf("longest match should win, got %q", reply)
		}
	}

	m.SetResponse("SOL", "réponse sol modifiée")
	if reply, _ := m.Converse(context.Background(), nil, "un sol lourd"); reply != "réponse sol modifiée" {
		t.Errorf("re-registering should replace the reply, got %q", reply)
	}
}
