package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	appmetrics "github.com/twmsh/trackfusion/infrastructure/metrics"
	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/internal/intake"
	"github.com/twmsh/trackfusion/internal/model"
)

// idPattern restricts track/person IDs accepted on the retrieval endpoint
// to safe path segments, closing off directory traversal via a crafted
// ?id= query parameter before it ever reaches imagestore.Resolve.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Wire-level values of the /trackupload `type` form field (spec.md §6:
// "type: facetrack | vehicletrack"). These are distinct from
// model.KindFace/model.KindVehicle, whose "cartrack" value names the
// on-disk image directory, not the HTTP contract.
const (
	wireTypeFace    = "facetrack"
	wireTypeVehicle = "vehicletrack"
)

// FaceDispatcher routes a parsed face-track notification to its
// coalescer — satisfied by *coalescer.Coalescer.
type FaceDispatcher interface {
	Dispatch(n *model.TrackNotification)
}

// VehicleDispatcher routes a parsed vehicle-track notification to its
// coalescer — satisfied by *coalescer.Coalescer.
type VehicleDispatcher interface {
	Dispatch(n *model.TrackNotification)
}

type handler struct {
	face    FaceDispatcher
	vehicle VehicleDispatcher
	images  *imagestore.Store
	log     *logrus.Entry
	metrics *appmetrics.Metrics
}

// trackUploadResponse is the {status, message, result} envelope spec.md
// §6 describes: transport status is always 200, application status is in
// the body.
type trackUploadResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result,omitempty"`
}

func writeTrackUploadOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(trackUploadResponse{Status: 0, Message: "操作成功", Result: "ok"})
}

func writeTrackUploadError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(trackUploadResponse{Status: 1, Message: message})
}

// trackUpload implements POST /trackupload (spec.md §4.A, §6): parses the
// multipart form, resolves the `type` field to a parser, decodes the
// `json` part plus every referenced file part, and enqueues onto the
// matching coalescer — non-blocking w.r.t. downstream processing.
func (h *handler) trackUpload(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeTrackUploadError(w, "malformed multipart form: "+err.Error())
		return
	}
	if r.MultipartForm == nil {
		writeTrackUploadError(w, "missing multipart form")
		return
	}

	kind := r.FormValue("type")
	jsonBody := r.FormValue("json")
	if jsonBody == "" {
		if parts, ok := r.MultipartForm.Value["json"]; ok && len(parts) > 0 {
			jsonBody = parts[0]
		}
	}
	if jsonBody == "" {
		writeTrackUploadError(w, "missing json field")
		return
	}

	files := make(map[string][]byte, len(r.MultipartForm.File))
	for name, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			writeTrackUploadError(w, "failed to open file part "+name)
			return
		}
		buf, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeTrackUploadError(w, "failed to read file part "+name)
			return
		}
		files[name] = buf
	}

	switch kind {
	case wireTypeFace:
		n, err := intake.ParseFaceTrack([]byte(jsonBody), files, receivedAt)
		if err != nil {
			h.logError("parse facetrack", err)
			writeTrackUploadError(w, err.Error())
			return
		}
		h.face.Dispatch(n)
	case wireTypeVehicle:
		n, err := intake.ParseVehicleTrack([]byte(jsonBody), files, receivedAt)
		if err != nil {
			h.logError("parse vehicletrack", err)
			writeTrackUploadError(w, err.Error())
			return
		}
		h.vehicle.Dispatch(n)
	default:
		writeTrackUploadError(w, "unknown type: "+kind)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTrackIngested(kind)
	}
	writeTrackUploadOK(w)
}

// getSingleImage implements GET /getsingleimg (spec.md §6): resolves the
// (cat, type, id, subid) coordinate to an on-disk path and serves it, or
// 404 if absent — "any image file may be absent without error on the read
// side".
func (h *handler) getSingleImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	catCode, err := strconv.Atoi(q.Get("cat"))
	if err != nil {
		http.Error(w, "invalid cat", http.StatusBadRequest)
		return
	}
	typ := q.Get("type")
	id := q.Get("id")
	if id == "" || !idPattern.MatchString(id) {
		http.Error(w, "missing or invalid id", http.StatusBadRequest)
		return
	}
	subID := 0
	if raw := q.Get("subid"); raw != "" {
		subID, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid subid", http.StatusBadRequest)
			return
		}
	}

	path, err := h.images.Resolve(catCode, typ, id, subID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, path)
}

func (h *handler) logError(op string, err error) {
	if h.log == nil {
		return
	}
	h.log.WithError(err).WithField("op", op).Warn("intake request rejected")
}
