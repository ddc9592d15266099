package genai

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// DefaultMockReply is returned by MockClient when no canned reply matches.
const DefaultMockReply = "Réponse simulée : le service de complétion fonctionne en mode démonstration."

// DefaultMockAnalysis is the canned reply for analysis prompts.
const DefaultMockAnalysis = `{"strategie":"Couverture permanente des sols et allongement des rotations","priorites":["Implanter des couverts d'interculture multi-espèces","Réduire progressivement le travail du sol","Introduire une légumineuse dans la rotation"],"indicateurs":["Taux de matière organique","Infiltration de l'eau","Marge brute par hectare"]}`

// MockCall records one invocation of MockClient.Converse.
type MockCall struct {
	Prior   []models.Turn
	Message string
}

type cannedReply struct {
	substr string
	reply  string
}

// MockClient is a canned-response Gateway for demos and tests.
type MockClient struct {
	mu        sync.Mutex
	responses []cannedReply
	fallback  string
	err       error
	calls     []MockCall
}

// NewMockClient returns a mock that answers analysis prompts with a canned
// strategy and everything else with DefaultMockReply.
func NewMockClient() *MockClient {
	return &MockClient{
		responses: []cannedReply{{substr: "analyse", reply: DefaultMockAnalysis}},
		fallback:  DefaultMockReply,
	}
}

// SetResponse registers a reply for prompts containing substr (case-insensitive).
// When several substrings match, the longest wins; equal lengths go to the
// earliest registered.
func (m *MockClient) SetResponse(substr, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	substr = strings.ToLower(substr)
	for i := range m.responses {
		if m.responses[i].substr == substr {
			m.responses[i].reply = reply
			return
		}
	}
	m.responses = append(m.responses, cannedReply{substr: substr, reply: reply})
}

// SetDefault sets the reply used when nothing matches.
func (m *MockClient) SetDefault(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = reply
}

// SetError forces every call to fail with err; nil restores normal replies.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of the recorded invocations.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) Converse(ctx context.Context, prior []models.Turn, newUserMessage string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	priorCopy := make([]models.Turn, len(prior))
	copy(priorCopy, prior)
	m.calls = append(m.calls, MockCall{Prior: priorCopy, Message: newUserMessage})

	if m.err != nil {
		return "", m.err
	}
	lower := strings.ToLower(newUserMessage)
	var best *cannedReply
	for i := range m.responses {
		c := &m.responses[i]
		if strings.Contains(lower, c.substr) && (best == nil || len(c.substr) > len(best.substr)) {
			best = c
		}
	}
	if best == nil {
		return m.fallback, nil
	}
	slog.Debug("MockClient.Converse: canned reply", "match", best.substr)
	return best.reply, nil
}
