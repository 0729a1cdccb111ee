package policyengine

import (
	"encoding/json"
	"net/http"
)

// ============================================================================
// DECISION ENDPOINT (collaborator)
// ============================================================================

// Directory resolves user IDs for the decision endpoint. UserIndex
// implements it; callers with a live HR system supply their own.
type Directory interface {
	Lookup(id string) (*User, bool)
}

// DecisionRequest is the wire form of one decision query. Context is
// supplied by the caller; the endpoint adds nothing of its own.
type DecisionRequest struct {
	UserID     string  `json:"user_id"`
	App        string  `json:"app"`
	Permission string  `json:"permission"`
	Context    Context `json:"context,omitempty"`
}

// DecisionHandler serves POST decision queries as JSON.
type DecisionHandler struct {
	engine *Engine
	users  Directory
	logger Logger
}

func NewDecisionHandler(engine *Engine, users Directory, l Logger) *DecisionHandler {
	return &DecisionHandler{engine: engine, users: users, logger: l}
}

func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" || req.App == "" || req.Permission == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id, app and permission are required")
		return
	}
	user, ok := h.users.Lookup(req.UserID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown user")
		return
	}
	resource := &Resource{App: req.App, Permission: req.Permission}
	dec := h.engine.Decide(r.Context(), user, resource, normalizeContext(req.Context))
	if h.logger != nil {
		h.logger.Info("decision served",
			"user", dec.UserID,
			"app", dec.App,
			"permission", dec.Permission,
			"effect", string(dec.Effect),
		)
	}
	writeJSON(w, http.StatusOK, dec)
}

// ValidateRequest carries one expression to vet against the sandbox
// grammar without running a decision.
type ValidateRequest struct {
	Expression string `json:"expression"`
}

type ValidateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateHandler lets administrators check policy expressions at load
// time, before they ship a config that silently never matches.
type ValidateHandler struct{}

func (ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if _, err := CompileExpression(req.Expression); err != nil {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
}

// normalizeContext maps JSON numbers (decoded as float64) back to the
// engine's int64 kind. Fractional values are left alone and will fail
// evaluation, which is the correct signal for a malformed context.
func normalizeContext(c Context) Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	for k, v := range c {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			out[k] = int64(f)
			continue
		}
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
