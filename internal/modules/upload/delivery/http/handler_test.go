package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/earnbuddy/backend/pkg/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStorage struct {
	uploaded []string
	folder   string
}

func (f *fakeStorage) UploadImage(_ context.Context, r io.Reader, folder, fileName string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, fileName)
	return "https://res.cloudinary.com/demo/image/upload/" + fileName, nil
}

func (f *fakeStorage) DeleteImage(context.Context, string) error { return nil }

func (f *fakeStorage) SignUpload(folder string) (*storage.UploadSignature, error) {
	f.folder = folder
	return &storage.UploadSignature{Signature: "sig", Timestamp: 1, APIKey: "key", CloudName: "demo", Folder: folder}, nil
}

func newRouter(h *UploadHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/upload/signature", h.Signature)
	r.POST("/api/upload", h.Upload)
	return r
}

func multipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	store := &fakeStorage{}
	r := newRouter(NewUploadHandler(store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "avatar.PNG", []byte("png-bytes")))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if !strings.HasSuffix(body["url"], ".png") {
		t.Errorf("url = %q, want .png file", body["url"])
	}
	if len(store.uploaded) != 1 {
		t.Errorf("uploads = %d, want 1", len(store.uploaded))
	}
}

func TestUpload_RejectsDisallowedExtension(t *testing.T) {
	store := &fakeStorage{}
	r := newRouter(NewUploadHandler(store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "script.exe", []byte("MZ")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(store.uploaded) != 0 {
		t.Error("disallowed file was uploaded")
	}
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	r := newRouter(NewUploadHandler(&fakeStorage{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "big.jpg", bytes.Repeat([]byte{0}, maxUploadSize+1)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSignature(t *testing.T) {
	store := &fakeStorage{}
	r := newRouter(NewUploadHandler(store))

	req := httptest.NewRequest(http.MethodPost, "/api/upload/signature", strings.NewReader(`{"folder":"avatars"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if store.folder != "avatars" {
		t.Errorf("folder = %q, want avatars", store.folder)
	}
}

func TestUnconfiguredStorage(t *testing.T) {
	r := newRouter(NewUploadHandler(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/upload/signature", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
