package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/store"
)

// DatasetHandler serves stored sample datasets.
type DatasetHandler struct {
	store store.Persistence
}

// NewDatasetHandler creates a DatasetHandler backed by s.
func NewDatasetHandler(s store.Persistence) *DatasetHandler {
	return &DatasetHandler{store: s}
}

// Register mounts the dataset routes on r.
func (h *DatasetHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/datasets/{language}/{side}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/datasets/{language}/{side}/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/datasets/{language}/{side}/{label}", h.save).Methods(http.MethodPost)
	r.HandleFunc("/api/datasets/{language}/{side}/{label}", h.delete).Methods(http.MethodDelete)
}

type datasetResponse struct {
	Language string                 `json:"language"`
	Side     gesture.Side           `json:"side"`
	Dataset  map[string][][]float64 `json:"dataset"`
	Labels   []string               `json:"labels"`
	Samples  int                    `json:"samples"`
}

type saveSamplesRequest struct {
	Samples [][]float64 `json:"samples"`
}

type saveSamplesResponse struct {
	Label string `json:"label"`
	store.SaveResult
}

type statsResponse struct {
	Language string             `json:"language"`
	Side     gesture.Side       `json:"side"`
	Labels   []store.LabelCount `json:"labels"`
}

type deleteLabelResponse struct {
	Label   string `json:"label"`
	Deleted int    `json:"deleted"`
}

// partitionOf reads the language and side path variables.
func partitionOf(r *http.Request) (string, gesture.Side, error) {
	vars := mux.Vars(r)
	side, err := parseSide(vars["side"])
	if err != nil {
		return "", "", err
	}
	return vars["language"], side, nil
}

// get handles GET /api/datasets/{language}/{side}.
func (h *DatasetHandler) get(w http.ResponseWriter, r *http.Request) {
	language, side, err := partitionOf(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	d, err := h.store.Load(r.Context(), side, language)
	if err != nil {
		WriteError(w, err)
		return
	}

	labels := d.Labels()
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, datasetResponse{
		Language: language,
		Side:     side,
		Dataset:  d.Map(),
		Labels:   labels,
		Samples:  d.Total(),
	})
}

// stats handles GET /api/datasets/{language}/{side}/stats.
func (h *DatasetHandler) stats(w http.ResponseWriter, r *http.Request) {
	language, side, err := partitionOf(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	counts, err := h.store.Stats(r.Context(), side, language)
	if err != nil {
		WriteError(w, err)
		return
	}
	if counts == nil {
		counts = []store.LabelCount{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Language: language, Side: side, Labels: counts})
}

// save handles POST /api/datasets/{language}/{side}/{label}, appending the
// posted samples to the label.
func (h *DatasetHandler) save(w http.ResponseWriter, r *http.Request) {
	language, side, err := partitionOf(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	label := strings.TrimSpace(mux.Vars(r)["label"])

	var req saveSamplesRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "samples are required")
		return
	}

	res, err := h.store.Save(r.Context(), label, req.Samples, side, language)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveSamplesResponse{Label: label, SaveResult: res})
}

// delete handles DELETE /api/datasets/{language}/{side}/{label}.
func (h *DatasetHandler) delete(w http.ResponseWriter, r *http.Request) {
	language, side, err := partitionOf(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	label := mux.Vars(r)["label"]

	n, err := h.store.Delete(r.Context(), label, side, language)
	if err != nil {
		WriteError(w, err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "label not found")
		return
	}
	writeJSON(w, http.StatusOK, deleteLabelResponse{Label: label, Deleted: n})
}
