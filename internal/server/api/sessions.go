package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/session"
)

// SessionHandler manages recognition sessions.
type SessionHandler struct {
	registry *session.Registry
}

// NewSessionHandler creates a SessionHandler over reg.
func NewSessionHandler(reg *session.Registry) *SessionHandler {
	return &SessionHandler{registry: reg}
}

// Register mounts the session routes on r.
func (h *SessionHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", h.create).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/frames", h.frame).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/mode", h.mode).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/target", h.target).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/capture", h.capture).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/commit", h.commit).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/reset", h.reset).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/type", h.typeSymbol).Methods(http.MethodPost)
}

type targetRequest struct {
	Language string `json:"language"`
	Side     string `json:"side"`
}

type modeRequest struct {
	Mode  string `json:"mode"`
	Label string `json:"label"`
}

type typeRequest struct {
	Symbol string `json:"symbol"`
}

type listSessionsResponse struct {
	Sessions []session.State `json:"sessions"`
}

type captureResponse struct {
	Label   string `json:"label"`
	Pending int    `json:"pending"`
}

type commitResponse struct {
	Label    string `json:"label"`
	Appended int    `json:"appended"`
	Count    int    `json:"count"`
}

// lookup resolves the {id} path variable, writing 404 when absent.
func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return nil, false
	}
	return s, true
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	resp := listSessionsResponse{Sessions: make([]session.State, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, s.State())
	}
	writeJSON(w, http.StatusOK, resp)
}

// create handles POST /api/sessions.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	var side gesture.Side
	if req.Side != "" {
		s, err := parseSide(req.Side)
		if err != nil {
			WriteError(w, err)
			return
		}
		side = s
	}

	s, err := h.registry.Create(r.Context(), req.Language, side)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.State())
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(mux.Vars(r)["id"]); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// frame handles POST /api/sessions/{id}/frames. The pose is picked up by
// the next tick; a null landmarks field clears the frame.
func (h *SessionHandler) frame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req FrameRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	hand, err := req.Hand()
	if err != nil {
		WriteError(w, err)
		return
	}
	s.Offer(hand)
	w.WriteHeader(http.StatusAccepted)
}

// mode handles POST /api/sessions/{id}/mode.
func (h *SessionHandler) mode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := s.SetMode(mode, req.Label); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// target handles POST /api/sessions/{id}/target, switching language or side.
func (h *SessionHandler) target(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	language, side := s.Target()
	if req.Language != "" {
		language = req.Language
	}
	if req.Side != "" {
		side = gesture.Side(req.Side)
	}
	if err := s.SetTarget(r.Context(), language, side); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// capture handles POST /api/sessions/{id}/capture.
func (h *SessionHandler) capture(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	pending, err := s.Capture()
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{Label: s.State().Label, Pending: pending})
}

// commit handles POST /api/sessions/{id}/commit.
func (h *SessionHandler) commit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	label := s.State().Label
	res, err := s.Commit(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{Label: label, Appended: res.Appended, Count: res.Total})
}

// reset handles POST /api/sessions/{id}/reset.
func (h *SessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, s.State())
}

// typeSymbol handles POST /api/sessions/{id}/type, applying a symbol as if
// it had been signed.
func (h *SessionHandler) typeSymbol(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req typeRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := s.Type(req.Symbol); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}
