package flow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/genai"
	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/BTreeMap/TerraPipe/internal/store"
)

// walkthrough holds one valid answer per step, in order.
var walkthrough = []string{
	"Chartres",
	"environ 600 mm de pluie par an avec des gelées tardives au printemps",
	"limon argileux profond, plutôt bien drainé sauf en hiver",
	"de l'érosion sur les pentes et un peu de compaction",
	"céréales et colza sur 120 ha, pas d'élevage",
	"labour tous les ans, pas de couverts, engrais minéraux",
	"charges de mécanisation élevées, aides PAC uniquement",
	"réduire les intrants et améliorer la vie du sol",
	"par la gestion des couverts",
}

func newTestService(loc *fakeLocator, gw genai.Gateway) (*SessionService, *MockStateManager) {
	sm := NewMockStateManager()
	return NewSessionService(NewController(loc, gw), sm), sm
}

func TestSessionStart(t *testing.T) {
	svc, sm := newTestService(newFakeLocator(), nil)
	s, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.ID == "" || s.CurrentStep != models.StepLocation {
		t.Errorf("unexpected session: %+v", s)
	}
	if len(s.Messages) != 1 || s.Messages[0].Text != GreetingMessage || s.Messages[0].Sender != models.SenderBot {
		t.Errorf("expected greeting message, got %+v", s.Messages)
	}
	if sm.saves != 1 {
		t.Errorf("expected one save, got %d", sm.saves)
	}
}

func TestSessionStartSaveFailure(t *testing.T) {
	svc, sm := newTestService(newFakeLocator(), nil)
	sm.saveErr = errBoom
	if _, err := svc.Start(context.Background()); !errors.Is(err, errBoom) {
		t.Errorf("expected save error, got %v", err)
	}
}

func TestSessionFullWalkthrough(t *testing.T) {
	svc, _ := newTestService(newFakeLocator(), genai.NewMockClient())
	ctx := context.Background()
	s, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i, answer := range walkthrough {
		res, err := svc.Submit(ctx, s.ID, answer)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if !res.Accepted {
			t.Fatalf("step %d (%s) rejected %q: %s", i, Steps[i].ID, answer, res.Appended[len(res.Appended)-1].Text)
		}
		if len(res.Appended) != 2 || res.Appended[0].Sender != models.SenderUser {
			t.Fatalf("step %d: unexpected appended messages %+v", i, res.Appended)
		}
		if res.Appended[0].Step != Steps[i].ID || res.Appended[1].Step != Steps[i].ID {
			t.Errorf("step %d: messages should be tagged with the submitted step", i)
		}
	}

	got, err := svc.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CurrentStep != models.StepAnalysis {
		t.Errorf("expected analysis step, got %s", got.CurrentStep)
	}
	if len(got.Messages) != 19 {
		t.Errorf("expected 19 messages, got %d", len(got.Messages))
	}
	if len(got.Context.Keys()) != 9 {
		t.Errorf("expected every context entry, got %v", got.Context.Keys())
	}
	if got.Context.Summary.Narrative != genai.DefaultMockAnalysis {
		t.Errorf("unexpected narrative %q", got.Context.Summary.Narrative)
	}
}

func TestSessionRejectedSubmission(t *testing.T) {
	svc, _ := newTestService(newFakeLocator(), nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)
	svc.Submit(ctx, s.ID, "Chartres")

	res, err := svc.Submit(ctx, s.ID, "  il fait beau  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted || res.Kind != KindInvalid {
		t.Fatalf("expected invalid rejection, got %+v", res)
	}
	if res.RetainedInput != "  il fait beau  " {
		t.Errorf("input should be retained verbatim, got %q", res.RetainedInput)
	}
	if len(res.Appended) != 2 || res.Appended[1].Sender != models.SenderError || res.Appended[1].Text != msgClimateInvalid {
		t.Errorf("expected user message plus one error, got %+v", res.Appended)
	}
	if res.Session.CurrentStep != models.StepClimateDetails || res.Session.Context.Climate != nil {
		t.Error("rejected answer must not advance or record anything")
	}
}

func TestSessionGreetingReprompt(t *testing.T) {
	loc := newFakeLocator()
	svc, _ := newTestService(loc, nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)

	res, err := svc.Submit(ctx, s.ID, "Bonjour")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted || res.Kind != KindGreeting || res.Appended[1].Sender != models.SenderBot {
		t.Errorf("expected bot re-prompt, got %+v", res)
	}
	if loc.searchCount() != 0 {
		t.Error("greeting must not trigger a lookup")
	}
}

func TestSessionSubmitInputGuards(t *testing.T) {
	svc, sm := newTestService(newFakeLocator(), nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)
	saves := sm.saves

	if _, err := svc.Submit(ctx, s.ID, " \n "); !errors.Is(err, models.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := svc.Submit(ctx, s.ID, strings.Repeat("a", models.MaxInputLength+1)); !errors.Is(err, models.ErrInputTooLong) {
		t.Errorf("expected ErrInputTooLong, got %v", err)
	}
	if _, err := svc.Submit(ctx, "unknown", "Chartres"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if sm.saves != saves {
		t.Error("guards must not persist anything")
	}
	got, _ := svc.Get(ctx, s.ID)
	if len(got.Messages) != 1 {
		t.Errorf("guards must not append messages, got %d", len(got.Messages))
	}
}

func TestSessionPendingGuard(t *testing.T) {
	loc := newFakeLocator()
	svc, _ := newTestService(loc, nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)

	loc.entered = make(chan struct{})
	loc.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, s.ID, "Chartres")
		done <- err
	}()

	select {
	case <-loc.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the locator")
	}

	if _, err := svc.Submit(ctx, s.ID, "Dreux"); !errors.Is(err, models.ErrSubmissionPending) {
		t.Errorf("expected ErrSubmissionPending, got %v", err)
	}
	if _, err := svc.Reset(ctx, s.ID); !errors.Is(err, models.ErrSubmissionPending) {
		t.Errorf("reset during a submission should be refused, got %v", err)
	}

	close(loc.release)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	got, _ := svc.Get(ctx, s.ID)
	if got.CurrentStep != models.StepClimateDetails || len(got.Messages) != 3 {
		t.Errorf("only the first submission should apply: step=%s messages=%d", got.CurrentStep, len(got.Messages))
	}
}

func TestSessionStartWhilePending(t *testing.T) {
	loc := newFakeLocator()
	svc, _ := newTestService(loc, nil)
	ctx := context.Background()
	s, err := svc.StartWithID(ctx, "wa:+33612345678")
	if err != nil {
		t.Fatalf("StartWithID failed: %v", err)
	}

	loc.entered = make(chan struct{})
	loc.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, s.ID, "Chartres")
		done <- err
	}()

	select {
	case <-loc.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the locator")
	}

	if _, err := svc.StartWithID(ctx, s.ID); !errors.Is(err, models.ErrSubmissionPending) {
		t.Errorf("restart during a submission should be refused, got %v", err)
	}
	if _, _, err := svc.GetOrStart(ctx, s.ID); !errors.Is(err, models.ErrSubmissionPending) {
		t.Errorf("GetOrStart during a submission should be refused, got %v", err)
	}

	close(loc.release)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	got, created, err := svc.GetOrStart(ctx, s.ID)
	if err != nil || created {
		t.Fatalf("expected the existing session, got created=%v err=%v", created, err)
	}
	if got.CurrentStep != models.StepClimateDetails || len(got.Messages) != 3 {
		t.Errorf("the submission should not have been wiped: step=%s messages=%d", got.CurrentStep, len(got.Messages))
	}
}

func TestSessionGetOrStart(t *testing.T) {
	svc, _ := newTestService(newFakeLocator(), nil)
	ctx := context.Background()

	s, created, err := svc.GetOrStart(ctx, "wa:+33700000000")
	if err != nil || !created {
		t.Fatalf("expected a new session, got created=%v err=%v", created, err)
	}
	if s.CurrentStep != FirstStep() || len(s.Messages) != 1 || s.Messages[0].Text != GreetingMessage {
		t.Errorf("unexpected new session %+v", s)
	}

	again, created, err := svc.GetOrStart(ctx, "wa:+33700000000")
	if err != nil || created {
		t.Fatalf("expected the same session, got created=%v err=%v", created, err)
	}
	if !again.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("session was recreated: %v vs %v", again.CreatedAt, s.CreatedAt)
	}

	if _, _, err := svc.GetOrStart(ctx, ""); !errors.Is(err, models.ErrEmptySessionID) {
		t.Errorf("expected ErrEmptySessionID, got %v", err)
	}
}

func TestSessionList(t *testing.T) {
	svc, _ := newTestService(newFakeLocator(), nil)
	ctx := context.Background()

	ids, err := svc.List(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no sessions, got %v (%v)", ids, err)
	}
	svc.StartWithID(ctx, "a")
	svc.StartWithID(ctx, "b")
	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ids, err = svc.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "b" {
		t.Errorf("expected [b], got %v (%v)", ids, err)
	}
}

func TestSessionPersistenceIsBestEffort(t *testing.T) {
	svc, sm := newTestService(newFakeLocator(), nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)

	sm.saveErr = errBoom
	res, err := svc.Submit(ctx, s.ID, "Chartres")
	if err != nil {
		t.Fatalf("save failure must not surface: %v", err)
	}
	if !res.Accepted || res.Session.CurrentStep != models.StepClimateDetails {
		t.Errorf("in-memory result should still advance, got %+v", res)
	}
}

func TestSessionGatewayServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	gw := genai.NewClient(genai.WithAPIKey("test-key"), genai.WithBaseURL(srv.URL+"/v1/"))
	svc, sm := newTestService(newFakeLocator(), gw)
	ctx := context.Background()

	goals := &models.TextEntry{Text: "réduire les intrants"}
	sm.SaveSession(ctx, models.Session{
		ID:          "at-analysis",
		CurrentStep: models.StepAnalysis,
		Context:     models.ConversationContext{Goals: goals},
		Messages:    []models.Message{},
	})

	res, err := svc.Submit(ctx, "at-analysis", "commencer par l'eau")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted || res.Kind != KindUnavailable {
		t.Fatalf("expected unavailable failure, got %+v", res)
	}
	if len(res.Appended) != 2 || res.Appended[1].Sender != models.SenderError || res.Appended[1].Text != MsgAnalysisFailed {
		t.Errorf("expected exactly one error message after the user message, got %+v", res.Appended)
	}

	got, _ := svc.Get(ctx, "at-analysis")
	if got.CurrentStep != models.StepAnalysis || got.Context.Summary != nil || got.Context.Goals == nil {
		t.Errorf("gateway failure must leave the context unchanged: %+v", got.Context)
	}
}

func TestSessionResetAndBack(t *testing.T) {
	svc, _ := newTestService(newFakeLocator(), nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)
	for _, answer := range walkthrough[:3] {
		svc.Submit(ctx, s.ID, answer)
	}

	soft, err := svc.Back(ctx, s.ID, false)
	if err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if soft.CurrentStep != models.StepSoilDescription || soft.Context.Soil == nil {
		t.Errorf("soft back keeps answers: step=%s soil=%v", soft.CurrentStep, soft.Context.Soil)
	}

	hard, err := svc.Back(ctx, s.ID, true)
	if err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if hard.CurrentStep != models.StepClimateDetails || hard.Context.Climate != nil || hard.Context.Soil != nil {
		t.Errorf("hard back purges target and later answers: %+v", hard.Context)
	}
	if hard.Context.Commune == nil {
		t.Error("hard back must keep earlier answers")
	}

	for i := 0; i < 2; i++ {
		r, err := svc.Reset(ctx, s.ID)
		if err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if r.CurrentStep != models.StepLocation || len(r.Messages) != 0 || len(r.Context.Keys()) != 0 {
			t.Errorf("reset #%d left state: %+v", i+1, r)
		}
	}
}

func TestSessionDelete(t *testing.T) {
	svc, _ := newTestService(newFakeLocator(), nil)
	ctx := context.Background()
	s, _ := svc.Start(ctx)
	if err := svc.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, s.ID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestStoreBasedStateManager(t *testing.T) {
	ctx := context.Background()
	sm := NewStoreBasedStateManager(store.NewInMemoryStore())

	if s, err := sm.LoadSession(ctx, "none"); err != nil || s != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", s, err)
	}
	svc := NewSessionService(NewController(newFakeLocator(), nil), sm)
	s, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := svc.Submit(ctx, s.ID, "Chartres"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	loaded, err := sm.LoadSession(ctx, s.ID)
	if err != nil || loaded == nil || loaded.Context.Commune == nil {
		t.Fatalf("snapshot not persisted: %+v (%v)", loaded, err)
	}
	if err := sm.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
}
