package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
	"github.com/ayusman/fingerspell/internal/store"
)

// ClassifyOptions are the defaults applied to one-shot classification.
type ClassifyOptions struct {
	Language string
	Side     gesture.Side
	// Threshold of zero accepts exact matches only. Negative selects
	// gesture.DefaultThreshold.
	Threshold float64
	Normalize pose.Options
}

// ClassifyHandler classifies single poses against a stored dataset.
type ClassifyHandler struct {
	store store.Persistence
	opts  ClassifyOptions
}

// NewClassifyHandler creates a ClassifyHandler.
func NewClassifyHandler(s store.Persistence, opts ClassifyOptions) *ClassifyHandler {
	if opts.Threshold < 0 {
		opts.Threshold = gesture.DefaultThreshold
	}
	return &ClassifyHandler{store: s, opts: opts}
}

// Register mounts the classify route on r.
func (h *ClassifyHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/classify", h.classify).Methods(http.MethodPost)
}

type classifyRequest struct {
	FrameRequest
	Language  string   `json:"language"`
	Side      string   `json:"side"`
	Threshold *float64 `json:"threshold"`
}

// classify handles POST /api/classify.
func (h *ClassifyHandler) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Landmarks == nil {
		writeError(w, http.StatusBadRequest, "landmarks are required")
		return
	}

	language := req.Language
	if language == "" {
		language = h.opts.Language
	}
	side := h.opts.Side
	if req.Side != "" {
		s, err := parseSide(req.Side)
		if err != nil {
			WriteError(w, err)
			return
		}
		side = s
	}
	threshold := h.opts.Threshold
	if req.Threshold != nil {
		if *req.Threshold < 0 {
			writeError(w, http.StatusBadRequest, "threshold must not be negative")
			return
		}
		threshold = *req.Threshold
	}

	hand, err := req.Hand()
	if err != nil {
		WriteError(w, err)
		return
	}

	d, err := h.store.Load(r.Context(), side, language)
	if err != nil {
		WriteError(w, err)
		return
	}
	centroids, err := gesture.ComputeCentroids(d)
	if err != nil {
		WriteError(w, err)
		return
	}

	vec := pose.Normalize(hand, h.opts.Normalize)
	writeJSON(w, http.StatusOK, gesture.Classify(vec, centroids, threshold))
}
