package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/deepsight/backend/internal/auth"
	"github.com/deepsight/backend/internal/models"
)

type recordingStorage struct {
	saved map[string][]byte
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{saved: make(map[string][]byte)}
}

func (s *recordingStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[name] = data
	return "uploads/" + name, nil
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func newUploadTestEnv(t *testing.T) (UploadHandler, *inMemoryFileStore, *recordingStorage, string) {
	t.Helper()

	accounts := newInMemoryAccountStore()
	accounts.accounts["diver"] = models.Account{ID: "acct-1", Username: "diver", IsActive: true}
	accounts.accounts["other"] = models.Account{ID: "acct-2", Username: "other", IsActive: true}

	tokens := auth.NewTokenManager("test-secret", time.Minute)
	token, err := tokens.Issue("diver")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	files := newInMemoryFileStore()
	store := newRecordingStorage()

	handler := UploadHandler{Accounts: accounts, Tokens: tokens, Files: files, Storage: store}
	return handler, files, store, token
}

func TestUploadHandlerStoresFile(t *testing.T) {
	handler, files, store, token := newUploadTestEnv(t)

	body, contentType := multipartBody(t, "reef.jpg", "image/jpeg", []byte("jpeg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FileID == "" || resp.Filename != "reef.jpg" || resp.ContentType != "image/jpeg" {
		t.Fatalf("unexpected response %+v", resp)
	}

	record, ok := files.files[resp.FileID]
	if !ok {
		t.Fatal("expected metadata record")
	}
	if record.AccountID != "acct-1" {
		t.Fatalf("expected owner acct-1 got %q", record.AccountID)
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected one stored object, got %d", len(store.saved))
	}
}

func TestUploadHandlerRejectsUnsupportedType(t *testing.T) {
	handler, files, _, token := newUploadTestEnv(t)

	body, contentType := multipartBody(t, "payload.exe", "application/octet-stream", []byte("nope"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(files.files) != 0 {
		t.Fatal("expected no metadata record")
	}
}

func TestUploadHandlerRejectsOversizedFile(t *testing.T) {
	handler, _, _, token := newUploadTestEnv(t)
	handler.MaxSize = 8

	body, contentType := multipartBody(t, "big.jpg", "image/jpeg", []byte("way more than eight bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestUploadHandlerRequiresToken(t *testing.T) {
	handler, _, _, _ := newUploadTestEnv(t)

	body, contentType := multipartBody(t, "reef.jpg", "image/jpeg", []byte("jpeg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestUploadHandlerFileInfoOwnership(t *testing.T) {
	handler, files, _, token := newUploadTestEnv(t)

	files.files["file-1"] = models.StoredFile{
		FileID:      "file-1",
		Filename:    "reef.jpg",
		Location:    "uploads/file-1.jpg",
		FileSize:    9,
		ContentType: "image/jpeg",
		AccountID:   "acct-1",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/upload/files/file-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.FileInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp fileInfoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FilePath != "uploads/file-1.jpg" {
		t.Fatalf("unexpected file path %q", resp.FilePath)
	}

	// Another account must not see the metadata.
	otherToken, err := auth.NewTokenManager("test-secret", time.Minute).Issue("other")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/upload/files/file-1", nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rec = httptest.NewRecorder()
	handler.FileInfo(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestUploadHandlerFileInfoUnknown(t *testing.T) {
	handler, _, _, token := newUploadTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/upload/files/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.FileInfo(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
