// Package api provides HTTP API handlers for the fingerspell recognition
// service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/spell"
	"github.com/ayusman/fingerspell/internal/store"
)

// maxBodyBytes bounds request bodies. A full dataset upload of a few hundred
// samples fits comfortably.
const maxBodyBytes = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// WriteError writes err with the status code it maps to.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, StatusOf(err), err.Error())
}

// StatusOf maps domain errors to HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, gesture.ErrDimensionMismatch),
		errors.Is(err, gesture.ErrEmptyLabel),
		errors.Is(err, detector.ErrInvalidPose),
		errors.Is(err, session.ErrInvalidMode),
		errors.Is(err, session.ErrNotRecording),
		errors.Is(err, session.ErrNoHand),
		errors.Is(err, session.ErrNothingToCommit),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, spell.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// parseSide parses a side path or body value, mapping failures to 400.
func parseSide(s string) (gesture.Side, error) {
	side, err := gesture.ParseSide(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return side, nil
}

// FrameRequest carries one client-side detection. Null landmarks mean no
// hand is visible.
type FrameRequest struct {
	Landmarks  []detector.Point3D `json:"landmarks"`
	Handedness string             `json:"handedness"`
}

// Hand converts the request into a pose, or nil when no hand was seen.
func (f FrameRequest) Hand() (*detector.HandLandmarks, error) {
	if f.Landmarks == nil {
		return nil, nil
	}
	h, err := detector.NewHandLandmarks(f.Landmarks, detector.ParseHandedness(f.Handedness))
	if err != nil {
		return nil, err
	}
	return &h, nil
}
