package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepsight/backend/internal/logging"
	"github.com/deepsight/backend/internal/models"
	"github.com/deepsight/backend/internal/repositories"
)

// DefaultMaxUploadSize caps uploads when no limit is configured.
const DefaultMaxUploadSize = 50 * 1024 * 1024

var allowedUploadTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"video/mp4":  {},
	"video/avi":  {},
}

// UploadHandler stores uploaded media and its metadata.
type UploadHandler struct {
	Accounts AccountStore
	Tokens   TokenManager
	Files    FileStore
	Storage  ObjectStorage
	MaxSize  int64
	NowFunc  func() time.Time
}

type uploadResponse struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

type fileInfoResponse struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// Upload handles POST /api/upload (multipart form, field "file").
func (h UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Files == nil || h.Storage == nil {
		logger.Error("upload dependencies unavailable", "hasFiles", h.Files != nil, "hasStorage", h.Storage != nil)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "upload services unavailable")
		return
	}

	account, err := currentAccount(ctx, r, h.Tokens, h.Accounts)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials")
		return
	}

	maxSize := h.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1)

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("upload missing file field", "error", err)
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if _, ok := allowedUploadTypes[contentType]; !ok {
		logger.Warn("upload unsupported content type", "contentType", contentType)
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "file type "+contentType+" not supported")
		return
	}

	if header.Size > maxSize {
		logger.Warn("upload too large", "size", header.Size, "max", maxSize)
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "File too large")
		return
	}

	fileID := uuid.NewString()
	name := fileID + filepath.Ext(header.Filename)

	location, err := h.Storage.Save(ctx, name, io.LimitReader(file, maxSize))
	if err != nil {
		logger.Error("upload storage failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "upload failed")
		return
	}

	record := models.StoredFile{
		FileID:      fileID,
		Filename:    header.Filename,
		Location:    location,
		FileSize:    header.Size,
		ContentType: contentType,
		AccountID:   account.ID,
		CreatedAt:   h.now(),
	}

	if err := h.Files.Create(ctx, record); err != nil {
		logger.Error("upload metadata persist failed", "error", err, "fileId", fileID)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "upload failed")
		return
	}

	logger.Info("file uploaded", "fileId", fileID, "accountId", account.ID, "size", header.Size)

	respondJSON(ctx, w, http.StatusOK, uploadResponse{
		FileID:      fileID,
		Filename:    header.Filename,
		FileSize:    header.Size,
		ContentType: contentType,
	})
}

// FileInfo handles GET /api/upload/files/{file_id}. Only the uploading
// account may read the metadata.
func (h UploadHandler) FileInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	account, err := currentAccount(ctx, r, h.Tokens, h.Accounts)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials")
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/api/upload/files/")
	if fileID == "" || strings.Contains(fileID, "/") {
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "file id is required")
		return
	}

	record, err := h.Files.Find(ctx, fileID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "File not found")
			return
		}
		logger.Error("file lookup failed", "fileId", fileID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "failed to read file info")
		return
	}

	if record.AccountID != account.ID {
		respondError(ctx, w, http.StatusForbidden, codeForbidden, "Access denied")
		return
	}

	respondJSON(ctx, w, http.StatusOK, fileInfoResponse{
		FileID:      record.FileID,
		Filename:    record.Filename,
		FilePath:    record.Location,
		FileSize:    record.FileSize,
		ContentType: record.ContentType,
	})
}

func (h UploadHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
