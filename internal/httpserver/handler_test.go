package httpserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/internal/model"
)

type captureDispatcher struct {
	got *model.TrackNotification
}

func (c *captureDispatcher) Dispatch(n *model.TrackNotification) { c.got = n }

func writeMultipart(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(name, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestTrackUploadFace(t *testing.T) {
	face := &captureDispatcher{}
	h := &handler{face: face, vehicle: &captureDispatcher{}, log: logrus.NewEntry(logrus.New())}

	body, contentType := writeMultipart(t,
		map[string]string{
			"type": "facetrack",
			"json": `{"id":"T1","source":"cam-1","faces":[{"aligned_file":"f1","quality":0.8}]}`,
		},
		map[string][]byte{"f1": []byte("cropbytes")},
	)

	req := httptest.NewRequest(http.MethodPost, "/trackupload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.trackUpload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, face.got)
	assert.Equal(t, "T1", face.got.ID)
	assert.Equal(t, model.KindFace, face.got.Kind)
	assert.Contains(t, rec.Body.String(), `"status":0`)
}

func TestTrackUploadVehicle(t *testing.T) {
	vehicle := &captureDispatcher{}
	h := &handler{face: &captureDispatcher{}, vehicle: vehicle, log: logrus.NewEntry(logrus.New())}

	body, contentType := writeMultipart(t,
		map[string]string{
			"type": "vehicletrack",
			"json": `{"id":"T2","source":"cam-2","vehicles":[{"image_file":"v1"}]}`,
		},
		map[string][]byte{"v1": []byte("cropbytes")},
	)

	req := httptest.NewRequest(http.MethodPost, "/trackupload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.trackUpload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, vehicle.got)
	assert.Equal(t, "T2", vehicle.got.ID)
	assert.Equal(t, model.KindVehicle, vehicle.got.Kind)
	assert.Contains(t, rec.Body.String(), `"status":0`)
}

func TestTrackUploadUnknownType(t *testing.T) {
	h := &handler{face: &captureDispatcher{}, vehicle: &captureDispatcher{}, log: logrus.NewEntry(logrus.New())}
	body, contentType := writeMultipart(t, map[string]string{"type": "bogus", "json": `{}`}, nil)
	req := httptest.NewRequest(http.MethodPost, "/trackupload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.trackUpload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":1`)
}

func TestGetSingleImageRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store := imagestore.New(dir, "/getsingleimg")
	h := &handler{images: store, log: logrus.NewEntry(logrus.New())}

	req := httptest.NewRequest(http.MethodGet, "/getsingleimg?cat=0&type=s&id=../../etc&subid=1", nil)
	rec := httptest.NewRecorder()

	h.getSingleImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSingleImageServesFile(t *testing.T) {
	dir := t.TempDir()
	store := imagestore.New(dir, "/getsingleimg")
	require.NoError(t, store.WriteTrackImage(imagestore.CategoryFace, "T1", 1, imagestore.TypeSmall, []byte{0xFF, 0xD8, 0xFF}))

	h := &handler{images: store, log: logrus.NewEntry(logrus.New())}
	req := httptest.NewRequest(http.MethodGet, "/getsingleimg?cat=0&type=s&id=T1&subid=1", nil)
	rec := httptest.NewRecorder()

	h.getSingleImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
