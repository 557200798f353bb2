package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecognitionClientDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		var req DetectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Fast)

		resp := Envelope{Code: 0}
		data, _ := json.Marshal(DetectResponse{Faces: []DetectedFace{{Quality: 0.9}}})
		resp.Data = data
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	rc := NewRecognitionClient(New(srv.URL, time.Second))
	out, err := rc.Detect(context.Background(), DetectRequest{Image: "base64data", Fast: true})
	require.NoError(t, err)
	require.Len(t, out.Faces, 1)
	require.InDelta(t, 0.9, out.Faces[0].Quality, 1e-9)
}

func TestClientLogicalErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Code: 7, Msg: "db not found"})
	}))
	defer srv.Close()

	rc := NewRecognitionClient(New(srv.URL, time.Second))
	_, err := rc.GetDBInfo(context.Background(), GetDBInfoRequest{LibraryID: "L1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "db not found")
}

func TestSearchResponseIndexAlignment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		matches := make([]SearchMatch, len(req.Features))
		matches[len(matches)-1] = SearchMatch{PersonID: "P9", Found: true, Score: 80}
		data, _ := json.Marshal(SearchResponse{Matches: matches})
		_ = json.NewEncoder(w).Encode(Envelope{Code: 0, Data: data})
	}))
	defer srv.Close()

	rc := NewRecognitionClient(New(srv.URL, time.Second))
	out, err := rc.Search(context.Background(), SearchRequest{
		LibraryIDs: []string{"L1"},
		Top:        []int{1},
		Threshold:  []float64{0},
		Features:   [][]float64{{0.1}, {0.2}, {0.3}},
	})
	require.NoError(t, err)
	require.Len(t, out.Matches, 3)
	require.False(t, out.Matches[0].Found)
	require.True(t, out.Matches[2].Found)
	require.Equal(t, "P9", out.Matches[2].PersonID)
}

func TestAnalysisClientGetSourceInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get_source_info", r.URL.Path)
		data, _ := json.Marshal(GetSourceInfoResponse{SourceID: "cam-1", Name: "Lobby", State: "online"})
		_ = json.NewEncoder(w).Encode(Envelope{Code: 0, Data: data})
	}))
	defer srv.Close()

	ac := NewAnalysisClient(New(srv.URL, time.Second))
	out, err := ac.GetSourceInfo(context.Background(), GetSourceInfoRequest{SourceID: "cam-1"})
	require.NoError(t, err)
	require.Equal(t, "Lobby", out.Name)
}
