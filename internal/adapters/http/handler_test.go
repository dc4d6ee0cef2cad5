package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wallybot/wally-agent/internal/adapters/llm"
	"github.com/wallybot/wally-agent/internal/adapters/storage/memory"
	"github.com/wallybot/wally-agent/internal/app/automation"
	"github.com/wallybot/wally-agent/internal/app/command"
	"github.com/wallybot/wally-agent/internal/app/intent"
	"github.com/wallybot/wally-agent/internal/domain"
)

// ─────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────

type fakeElement struct{}

func (fakeElement) Tap(context.Context) error          { return nil }
func (fakeElement) Type(context.Context, string) error { return nil }

// fakeDevice answers every locator, so every item addition succeeds.
type fakeDevice struct {
	connectErr error
}

func (d *fakeDevice) Connect(context.Context) error             { return d.connectErr }
func (d *fakeDevice) ActivateApp(context.Context, string) error { return nil }
func (d *fakeDevice) PressKey(context.Context, int) error       { return nil }
func (d *fakeDevice) Disconnect(context.Context) error          { return nil }

func (d *fakeDevice) FindElement(context.Context, domain.LocatorStrategy, string) (domain.Element, error) {
	return fakeElement{}, nil
}

func testSelectors() *automation.Selectors {
	return &automation.Selectors{
		SearchBar:      automation.Selector{ResourceID: "app:id/search"},
		ProductList:    automation.Selector{ResourceID: "app:id/results"},
		AddToCart:      automation.Selector{ResourceID: "app:id/add"},
		CartPlusButton: automation.Selector{ResourceID: "app:id/plus"},
	}
}

type env struct {
	handler http.Handler
	orders  *memory.OrderStore
}

func newTestEnv(t *testing.T, device domain.Device) *env {
	t.Helper()

	orders := memory.NewOrderStore()
	sessions := automation.NewManager(device, testSelectors(), "com.walmart.android", 200*time.Millisecond)
	resolver := intent.NewResolver(&llm.MockModel{})
	transcriber := &llm.MockTranscriber{Text: "add milk and eggs"}
	commands := command.NewService(transcriber, resolver, orders, sessions)

	return &env{
		handler: NewServer(commands, transcriber, sessions),
		orders:  orders,
	}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// ─────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	rec := e.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestTextCommandAddItems(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	rec := e.do(t, http.MethodPost, "/api/v1/voice/text-command",
		`{"command": "add 2 milks and eggs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	report := decodeBody[domain.ExecutionReport](t, rec)
	if report.Intent != domain.IntentAddItems {
		t.Errorf("intent = %s, want add_items", report.Intent)
	}
	if report.Overall != domain.OverallSuccess {
		t.Errorf("overall = %s, want success", report.Overall)
	}
	if len(report.Items) != 2 {
		t.Fatalf("attempted %d items, want 2", len(report.Items))
	}
	if report.Items[0].Item.Name != "milks" || report.Items[0].Item.Quantity != 2 {
		t.Errorf("first item = %+v", report.Items[0].Item)
	}
}

func TestTextCommandRequiresCommand(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	if rec := e.do(t, http.MethodPost, "/api/v1/voice/text-command", `{"command": "  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank command: status = %d, want 400", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/v1/voice/text-command", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: status = %d, want 400", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/voice/text-command", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}
}

func TestProcessCommandTranscribes(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	// "add milk and eggs" comes back from the stub transcriber.
	rec := e.do(t, http.MethodPost, "/api/v1/voice/process-command",
		`{"audio_base64": "AAAA", "mime_type": "audio/wav"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[domain.ExecutionReport](t, rec)
	if report.Transcription != "add milk and eggs" {
		t.Errorf("transcription = %q", report.Transcription)
	}
	if report.Overall != domain.OverallSuccess {
		t.Errorf("overall = %s, want success", report.Overall)
	}
}

func TestProcessCommandTranscriberDown(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	// Swap the env for one with a failing transcriber.
	orders := memory.NewOrderStore()
	sessions := automation.NewManager(&fakeDevice{}, testSelectors(), "com.walmart.android", 200*time.Millisecond)
	transcriber := &llm.MockTranscriber{Fail: true}
	commands := command.NewService(transcriber, intent.NewResolver(&llm.MockModel{}), orders, sessions)
	e.handler = NewServer(commands, transcriber, sessions)

	rec := e.do(t, http.MethodPost, "/api/v1/voice/process-command",
		`{"audio_base64": "AAAA"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestTranscribeRejectsBadAudio(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	if rec := e.do(t, http.MethodPost, "/api/v1/voice/transcribe", `{"audio_base64": ""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty audio: status = %d, want 400", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/v1/voice/transcribe", `{"audio_base64": "!!!"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid base64: status = %d, want 400", rec.Code)
	}
}

func TestOrderHistoryRoundTrip(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})

	rec := e.do(t, http.MethodPost, "/api/v1/orders/history",
		`{"items": [{"name": "milk", "quantity": 2}, {"name": "eggs"}], "total": 12.5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}
	saved := decodeBody[domain.Order](t, rec)
	if saved.ID == "" {
		t.Fatal("saved order has no id")
	}
	if len(saved.Items) != 2 || saved.Items[1].Quantity != 1 {
		t.Errorf("saved items = %+v", saved.Items)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/orders/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	listed := decodeBody[ordersResponse](t, rec)
	if len(listed.Orders) != 1 || listed.Orders[0].ID != saved.ID {
		t.Errorf("listed = %+v", listed.Orders)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/orders/history/"+string(saved.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	if rec := e.do(t, http.MethodGet, "/api/v1/orders/history/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

// failingStore breaks every history operation so the 500 path is exercised.
type failingStore struct{}

var errStoreDown = errors.New("database locked")

func (failingStore) Save(context.Context, []domain.ItemRequest, *float64) (*domain.Order, error) {
	return nil, errStoreDown
}
func (failingStore) List(context.Context, int, int) ([]*domain.Order, error) {
	return nil, errStoreDown
}
func (failingStore) Get(context.Context, domain.OrderID) (*domain.Order, error) {
	return nil, errStoreDown
}
func (failingStore) MostRecent(context.Context) (*domain.Order, error) {
	return nil, errStoreDown
}

func TestStoreFailureIsOpaque500(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	sessions := automation.NewManager(&fakeDevice{}, testSelectors(), "com.walmart.android", 200*time.Millisecond)
	transcriber := &llm.MockTranscriber{Text: "add milk"}
	commands := command.NewService(transcriber, intent.NewResolver(&llm.MockModel{}), failingStore{}, sessions)
	e.handler = NewServer(commands, transcriber, sessions)

	rec := e.do(t, http.MethodGet, "/api/v1/orders/history", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] != "internal server error" {
		t.Errorf("error body = %q, want the opaque message", body["error"])
	}
	if strings.Contains(rec.Body.String(), errStoreDown.Error()) {
		t.Error("store error detail leaked to the client")
	}
}

func TestSaveOrderRejectsEmpty(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	rec := e.do(t, http.MethodPost, "/api/v1/orders/history", `{"items": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReorderByID(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	ctx := context.Background()
	order, err := e.orders.Save(ctx, []domain.ItemRequest{{Name: "rice", Quantity: 3}}, nil)
	if err != nil {
		t.Fatalf("seeding order: %v", err)
	}

	rec := e.do(t, http.MethodPost, "/api/v1/orders/reorder/"+string(order.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[domain.ExecutionReport](t, rec)
	if report.Overall != domain.OverallSuccess {
		t.Errorf("overall = %s, want success", report.Overall)
	}
	if len(report.Items) != 1 || report.Items[0].Item.Name != "rice" {
		t.Errorf("items = %+v", report.Items)
	}

	if rec := e.do(t, http.MethodPost, "/api/v1/orders/reorder/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestAutomationLifecycle(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})

	rec := e.do(t, http.MethodGet, "/api/v1/automation/status", "")
	status := decodeBody[automationStatusResponse](t, rec)
	if status.State != string(domain.StateDisconnected) {
		t.Errorf("initial state = %s, want DISCONNECTED", status.State)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/automation/connect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d, body %s", rec.Code, rec.Body.String())
	}
	status = decodeBody[automationStatusResponse](t, rec)
	if status.State != string(domain.StateConnected) {
		t.Errorf("state after connect = %s, want CONNECTED", status.State)
	}

	// The device is claimed; a second connect must conflict.
	if rec := e.do(t, http.MethodPost, "/api/v1/automation/connect", ""); rec.Code != http.StatusConflict {
		t.Errorf("second connect: status = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/automation/open-app", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("open-app status = %d, body %s", rec.Code, rec.Body.String())
	}
	status = decodeBody[automationStatusResponse](t, rec)
	if status.State != string(domain.StateAppReady) {
		t.Errorf("state after open-app = %s, want APP_READY", status.State)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/automation/disconnect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect status = %d", rec.Code)
	}
	status = decodeBody[automationStatusResponse](t, rec)
	if status.State != string(domain.StateDisconnected) {
		t.Errorf("state after disconnect = %s, want DISCONNECTED", status.State)
	}
}

func TestAutomationConnectDeviceDown(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{connectErr: context.DeadlineExceeded})
	rec := e.do(t, http.MethodPost, "/api/v1/automation/connect", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	status := decodeBody[automationStatusResponse](t, e.do(t, http.MethodGet, "/api/v1/automation/status", ""))
	if status.State != string(domain.StateError) {
		t.Errorf("state = %s, want ERROR", status.State)
	}
	if status.LastError == "" {
		t.Error("expected last_error to be set")
	}
}

func TestSearchItem(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	rec := e.do(t, http.MethodPost, "/api/v1/automation/search-item", `{"name": "milk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["found"] != true {
		t.Errorf("found = %v, want true", body["found"])
	}

	if rec := e.do(t, http.MethodPost, "/api/v1/automation/search-item", `{"name": ""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d, want 400", rec.Code)
	}
}

func TestAddToCart(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	rec := e.do(t, http.MethodPost, "/api/v1/automation/add-to-cart",
		`{"items": [{"name": "milk", "quantity": 2}, {"name": "bread"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[domain.ExecutionReport](t, rec)
	if report.Overall != domain.OverallSuccess {
		t.Errorf("overall = %s, want success", report.Overall)
	}
	if len(report.Items) != 2 {
		t.Errorf("attempted %d items, want 2", len(report.Items))
	}

	if rec := e.do(t, http.MethodPost, "/api/v1/automation/add-to-cart", `{"items": []}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty items: status = %d, want 400", rec.Code)
	}
}

func TestUnknownRoutes(t *testing.T) {
	e := newTestEnv(t, &fakeDevice{})
	if rec := e.do(t, http.MethodPost, "/api/v1/voice/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("voice: status = %d, want 404", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/v1/automation/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("automation: status = %d, want 404", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/orders/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("orders: status = %d, want 404", rec.Code)
	}
}
