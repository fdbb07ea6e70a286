package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/spell"
	"github.com/ayusman/fingerspell/internal/store"
)

// newTestStore returns a file store seeded with the A and B fixtures for
// right-hand auslan.
func newTestStore(t *testing.T) store.Persistence {
	t.Helper()
	s := store.NewFileStore(t.TempDir())
	for label, hand := range map[string]detector.HandLandmarks{
		"A": detector.LetterALandmarks(),
		"B": detector.LetterBLandmarks(),
	} {
		if _, err := s.Save(context.Background(), label, [][]float64{pose.Normalize(&hand, pose.Options{})}, gesture.SideRight, "auslan"); err != nil {
			t.Fatalf("seed %s: %v", label, err)
		}
	}
	return s
}

func newRouter(register ...func(*mux.Router)) *mux.Router {
	r := mux.NewRouter()
	for _, fn := range register {
		fn(r)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func landmarksOf(h detector.HandLandmarks) []detector.Point3D {
	return append([]detector.Point3D(nil), h.Points[:]...)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", store.ErrInvalidKey), http.StatusBadRequest},
		{gesture.ErrDimensionMismatch, http.StatusBadRequest},
		{detector.ErrInvalidPose, http.StatusBadRequest},
		{session.ErrNotRecording, http.StatusBadRequest},
		{session.ErrClosed, http.StatusGone},
		{spell.ErrUnavailable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDatasetHandler(t *testing.T) {
	s := newTestStore(t)
	r := newRouter(NewDatasetHandler(s).Register)

	t.Run("get returns labels in insertion order", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/datasets/auslan/RIGHT", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
		resp := decode[datasetResponse](t, rec)
		if resp.Side != gesture.SideRight || resp.Samples != 2 {
			t.Errorf("unexpected response %+v", resp)
		}
		if len(resp.Dataset["A"]) != 1 || len(resp.Dataset["A"][0]) != pose.FeatureLen {
			t.Errorf("expected one %d-value sample for A", pose.FeatureLen)
		}
	})

	t.Run("missing partition is empty", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/datasets/bsl/left", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		resp := decode[datasetResponse](t, rec)
		if resp.Samples != 0 || len(resp.Labels) != 0 || resp.Labels == nil {
			t.Errorf("expected empty labels array, got %+v", resp)
		}
	})

	t.Run("invalid side", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/datasets/auslan/middle", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("save appends", func(t *testing.T) {
		a := detector.LetterALandmarks()
		vec := pose.Normalize(&a, pose.Options{})
		rec := do(t, r, http.MethodPost, "/api/datasets/auslan/right/A", saveSamplesRequest{Samples: [][]float64{vec, vec}})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
		}
		resp := decode[map[string]any](t, rec)
		if resp["label"] != "A" || resp["appended"] != float64(2) || resp["count"] != float64(3) {
			t.Errorf("unexpected response %v", resp)
		}
	})

	t.Run("save rejects bad input", func(t *testing.T) {
		cases := map[string]any{
			"invalid json":     "{",
			"no samples":       saveSamplesRequest{},
			"wrong dimensions": saveSamplesRequest{Samples: [][]float64{{1, 2, 3}}},
		}
		for name, body := range cases {
			rec := do(t, r, http.MethodPost, "/api/datasets/auslan/right/C", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status %d, got %d", name, http.StatusBadRequest, rec.Code)
			}
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/datasets/auslan/right/stats", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		resp := decode[statsResponse](t, rec)
		if len(resp.Labels) != 2 {
			t.Fatalf("expected 2 labels, got %+v", resp.Labels)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, r, http.MethodDelete, "/api/datasets/auslan/right/B", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if resp := decode[deleteLabelResponse](t, rec); resp.Deleted != 1 {
			t.Errorf("expected 1 deleted, got %d", resp.Deleted)
		}

		rec = do(t, r, http.MethodDelete, "/api/datasets/auslan/right/B", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestClassifyHandler(t *testing.T) {
	s := newTestStore(t)
	r := newRouter(NewClassifyHandler(s, ClassifyOptions{Language: "auslan", Side: gesture.SideRight, Threshold: gesture.DefaultThreshold}).Register)

	t.Run("matches a stored letter", func(t *testing.T) {
		body := map[string]any{"landmarks": landmarksOf(detector.LetterBLandmarks()), "handedness": "Right"}
		rec := do(t, r, http.MethodPost, "/api/classify", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
		}
		resp := decode[map[string]any](t, rec)
		if resp["label"] != "B" || resp["matched"] != true {
			t.Errorf("expected B match, got %v", resp)
		}
	})

	t.Run("mirrored left hand matches right-hand data", func(t *testing.T) {
		left := detector.MirrorHand(detector.LetterALandmarks())
		body := map[string]any{"landmarks": landmarksOf(left), "handedness": "Left"}
		rec := do(t, r, http.MethodPost, "/api/classify", body)
		resp := decode[map[string]any](t, rec)
		if resp["label"] != "A" {
			t.Errorf("expected A, got %v", resp)
		}
	})

	t.Run("empty partition is no match", func(t *testing.T) {
		body := map[string]any{"landmarks": landmarksOf(detector.LetterALandmarks()), "language": "asl"}
		rec := do(t, r, http.MethodPost, "/api/classify", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		resp := decode[map[string]any](t, rec)
		if resp["label"] != gesture.NoMatch || resp["distance"] != nil {
			t.Errorf("expected NoMatch with null distance, got %v", resp)
		}
	})

	t.Run("explicit zero threshold accepts exact matches only", func(t *testing.T) {
		near := detector.LetterBLandmarks()
		near.Points[detector.PinkyTip].X += 0.002

		tests := []struct {
			name      string
			hand      detector.HandLandmarks
			threshold float64
			matched   bool
		}{
			{"exact", detector.LetterBLandmarks(), 0, true},
			{"near", near, 0, false},
			{"near with loose threshold", near, 1, true},
		}
		for _, tt := range tests {
			body := map[string]any{"landmarks": landmarksOf(tt.hand), "handedness": "Right", "threshold": tt.threshold}
			resp := decode[map[string]any](t, do(t, r, http.MethodPost, "/api/classify", body))
			if resp["matched"] != tt.matched || resp["nearest"] != "B" {
				t.Errorf("%s: expected matched=%v nearest B, got %v", tt.name, tt.matched, resp)
			}
		}
	})

	t.Run("rejects bad poses", func(t *testing.T) {
		for name, body := range map[string]any{
			"negative threshold": map[string]any{"landmarks": landmarksOf(detector.LetterBLandmarks()), "threshold": -0.1},
			"missing landmarks":  map[string]any{},
			"short pose":         map[string]any{"landmarks": []detector.Point3D{{X: 1}}},
			"bad side":           map[string]any{"landmarks": landmarksOf(detector.LetterALandmarks()), "side": "up"},
		} {
			rec := do(t, r, http.MethodPost, "/api/classify", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status %d, got %d", name, http.StatusBadRequest, rec.Code)
			}
		}
	})
}

func newSessionRouter(t *testing.T) (*mux.Router, *session.Registry) {
	t.Helper()
	opts := session.DefaultOptions()
	opts.Side = gesture.SideRight
	opts.Store = newTestStore(t)
	reg := session.NewRegistry(opts)
	t.Cleanup(reg.Close)
	return newRouter(NewSessionHandler(reg).Register), reg
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	r, reg := newSessionRouter(t)

	rec := do(t, r, http.MethodPost, "/api/sessions", map[string]string{"language": "auslan", "side": "Right"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body)
	}
	created := decode[session.State](t, rec)
	if created.ID == "" || created.Side != gesture.SideRight || created.Samples != 2 {
		t.Fatalf("unexpected session %+v", created)
	}
	base := "/api/sessions/" + created.ID

	rec = do(t, r, http.MethodGet, "/api/sessions", nil)
	if list := decode[listSessionsResponse](t, rec); len(list.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(list.Sessions))
	}

	rec = do(t, r, http.MethodGet, base, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	for _, sym := range []string{"H", "I"} {
		do(t, r, http.MethodPost, base+"/type", typeRequest{Symbol: sym})
	}
	rec = do(t, r, http.MethodPost, base+"/type", typeRequest{Symbol: "DELETE"})
	if st := decode[session.State](t, rec); st.Text != "H" {
		t.Errorf("expected text H after delete, got %q", st.Text)
	}

	rec = do(t, r, http.MethodPost, base+"/reset", nil)
	if st := decode[session.State](t, rec); st.Text != "" {
		t.Errorf("expected empty text after reset, got %q", st.Text)
	}

	rec = do(t, r, http.MethodPost, base+"/type", typeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty symbol: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = do(t, r, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if reg.Len() != 0 {
		t.Errorf("expected registry empty, got %d", reg.Len())
	}

	rec = do(t, r, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSessionHandler_CreateRejectsBadTarget(t *testing.T) {
	r, _ := newSessionRouter(t)

	for _, body := range []map[string]string{
		{"side": "sideways"},
		{"language": "../etc"},
	} {
		rec := do(t, r, http.MethodPost, "/api/sessions", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: expected status %d, got %d", body, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestSessionHandler_RecordAndCommit(t *testing.T) {
	r, reg := newSessionRouter(t)

	sess, err := reg.Create(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	base := "/api/sessions/" + sess.ID()

	rec := do(t, r, http.MethodPost, base+"/capture", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("capture in predict mode: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = do(t, r, http.MethodPost, base+"/mode", modeRequest{Mode: "record"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("record without label: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	rec = do(t, r, http.MethodPost, base+"/mode", modeRequest{Mode: "dance"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = do(t, r, http.MethodPost, base+"/mode", modeRequest{Mode: "record", Label: "C"})
	if st := decode[session.State](t, rec); st.Mode != session.ModeRecord || st.Label != "C" {
		t.Fatalf("unexpected state %+v", st)
	}

	rec = do(t, r, http.MethodPost, base+"/capture", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("capture without hand: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	c := detector.LetterALandmarks()
	c.Points[detector.ThumbTip].Y += 0.02
	rec = do(t, r, http.MethodPost, base+"/frames", FrameRequest{Landmarks: landmarksOf(c), Handedness: "Right"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body)
	}

	for i := 1; i <= 2; i++ {
		rec = do(t, r, http.MethodPost, base+"/capture", nil)
		if resp := decode[captureResponse](t, rec); resp.Pending != i || resp.Label != "C" {
			t.Errorf("capture %d: unexpected response %+v", i, resp)
		}
	}

	rec = do(t, r, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
	}
	if resp := decode[commitResponse](t, rec); resp.Label != "C" || resp.Appended != 2 || resp.Count != 2 {
		t.Errorf("unexpected commit %+v", resp)
	}

	rec = do(t, r, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty commit: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = do(t, r, http.MethodPost, base+"/frames", FrameRequest{})
	if rec.Code != http.StatusAccepted {
		t.Errorf("null landmarks: expected status %d, got %d", http.StatusAccepted, rec.Code)
	}

	rec = do(t, r, http.MethodPost, base+"/target", targetRequest{Language: "bsl"})
	if st := decode[session.State](t, rec); st.Language != "bsl" || st.Samples != 0 {
		t.Errorf("expected empty bsl dataset, got %+v", st)
	}
}
