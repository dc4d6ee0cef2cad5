package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/wallybot/wally-agent/internal/app/automation"
	"github.com/wallybot/wally-agent/internal/app/command"
	"github.com/wallybot/wally-agent/internal/domain"
	"github.com/wallybot/wally-agent/internal/observability"
)

type Server struct {
	commands    *command.Service
	transcriber domain.Transcriber
	sessions    *automation.Manager
}

func NewServer(commands *command.Service, transcriber domain.Transcriber, sessions *automation.Manager) http.Handler {
	s := &Server{
		commands:    commands,
		transcriber: transcriber,
		sessions:    sessions,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/voice/", s.handleVoice)
	mux.HandleFunc("/api/v1/orders/", s.handleOrders)
	mux.HandleFunc("/api/v1/automation/", s.handleAutomation)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type audioRequest struct {
	AudioBase64 string `json:"audio_base64"`
	MIMEType    string `json:"mime_type,omitempty"`
}

type textCommandRequest struct {
	Command string `json:"command"`
}

type transcriptResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type orderItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
}

type saveOrderRequest struct {
	Items []orderItemRequest `json:"items"`
	Total *float64           `json:"total,omitempty"`
}

type ordersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

type automationStatusResponse struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

type searchItemRequest struct {
	Name string `json:"name"`
}

type addToCartRequest struct {
	Items []orderItemRequest `json:"items"`
}

// ─────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ─────────────────────────────────────────────
// /api/v1/voice/...
// ─────────────────────────────────────────────

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/api/v1/voice/") {
	case "transcribe":
		s.handleTranscribe(w, r)
	case "process-command":
		s.handleProcessCommand(w, r)
	case "text-command":
		s.handleTextCommand(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, mimeType, ok := decodeAudio(w, r)
	if !ok {
		return
	}

	tr, err := s.transcriber.Transcribe(r.Context(), audio, mimeType)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, transcriptResponse{Text: tr.Text, Language: tr.Language})
}

func (s *Server) handleProcessCommand(w http.ResponseWriter, r *http.Request) {
	audio, mimeType, ok := decodeAudio(w, r)
	if !ok {
		return
	}

	report, err := s.commands.Handle(r.Context(), command.Input{Audio: audio, MIMEType: mimeType})
	if err != nil {
		var terr *domain.TranscriptionError
		if errors.As(err, &terr) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": terr.Error()})
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTextCommand(w http.ResponseWriter, r *http.Request) {
	var req textCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		badRequest(w, "command is required")
		return
	}

	report, err := s.commands.Handle(r.Context(), command.Input{Text: req.Command})
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ─────────────────────────────────────────────
// /api/v1/orders/...
// ─────────────────────────────────────────────

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/orders/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case parts[0] == "history" && len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.handleListOrders(w, r)
		case http.MethodPost:
			s.handleSaveOrder(w, r)
		default:
			methodNotAllowed(w)
		}
	case parts[0] == "history" && len(parts) == 2:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleGetOrder(w, r, domain.OrderID(parts[1]))
	case parts[0] == "reorder" && len(parts) == 2:
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleReorder(w, r, domain.OrderID(parts[1]))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	orders, err := s.commands.History(r.Context(), limit, offset)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: orders})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, id domain.OrderID) {
	order, err := s.commands.GetOrder(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleSaveOrder(w http.ResponseWriter, r *http.Request) {
	var req saveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	order, err := s.commands.SaveCompleted(r.Context(), toItemRequests(req.Items), req.Total)
	if errors.Is(err, domain.ErrEmptyOrder) {
		badRequest(w, "order must contain at least one item")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request, id domain.OrderID) {
	report, err := s.commands.ReorderByID(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ─────────────────────────────────────────────
// /api/v1/automation/...
// ─────────────────────────────────────────────

func (s *Server) handleAutomation(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, "/api/v1/automation/")

	if op == "status" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleAutomationStatus(w, r)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch op {
	case "connect":
		s.handleConnect(w, r)
	case "open-app":
		s.handleOpenApp(w, r)
	case "disconnect":
		s.handleDisconnect(w, r)
	case "search-item":
		s.handleSearchItem(w, r)
	case "add-to-cart":
		s.handleAddToCart(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAutomationStatus(w http.ResponseWriter, r *http.Request) {
	resp := automationStatusResponse{State: string(domain.StateDisconnected)}
	if sess := s.sessions.Current(); sess != nil {
		resp.State = string(sess.State())
		resp.LastError = sess.LastError()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Acquire()
	if errors.Is(err, domain.ErrAlreadyConnected) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	if err := sess.Connect(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, automationStatusResponse{State: string(sess.State())})
}

func (s *Server) handleOpenApp(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Current()
	if sess == nil {
		badRequest(w, "no session; connect first")
		return
	}
	if err := sess.OpenApp(r.Context()); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			badRequest(w, "session is not connected")
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, automationStatusResponse{State: string(sess.State())})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Current()
	if sess == nil {
		writeJSON(w, http.StatusOK, automationStatusResponse{State: string(domain.StateDisconnected)})
		return
	}
	if err := sess.Disconnect(r.Context()); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, automationStatusResponse{State: string(sess.State())})
}

func (s *Server) handleSearchItem(w http.ResponseWriter, r *http.Request) {
	var req searchItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, "name is required")
		return
	}

	driver, err := s.sessions.Ensure(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	if err := driver.SearchItem(r.Context(), req.Name); err != nil {
		if errors.Is(err, domain.ErrElementNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"found": false, "name": req.Name})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "name": req.Name})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	items := toItemRequests(req.Items)
	if len(items) == 0 {
		badRequest(w, "items are required")
		return
	}

	driver, err := s.sessions.Ensure(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	report := &domain.ExecutionReport{Intent: domain.IntentAddItems}
	added := 0
	for _, item := range items {
		outcome := driver.AddItem(r.Context(), item)
		report.Items = append(report.Items, domain.AttemptedItem{Item: item, Outcome: outcome})
		if outcome.Status == domain.ItemAdded {
			added++
		}
	}
	switch {
	case added == len(items):
		report.Overall = domain.OverallSuccess
	case added == 0:
		report.Overall = domain.OverallFailed
	default:
		report.Overall = domain.OverallPartial
	}

	writeJSON(w, http.StatusOK, report)
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func decodeAudio(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return nil, "", false
	}
	if req.AudioBase64 == "" {
		badRequest(w, "audio_base64 is required")
		return nil, "", false
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		badRequest(w, "audio_base64 is not valid base64")
		return nil, "", false
	}
	return audio, req.MIMEType, true
}

func toItemRequests(in []orderItemRequest) []domain.ItemRequest {
	out := make([]domain.ItemRequest, 0, len(in))
	for _, it := range in {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, domain.ItemRequest{Name: name, Quantity: qty})
	}
	return out
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

// internalError hides the detail from the client but logs it; a silent 500
// is undebuggable server-side.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
