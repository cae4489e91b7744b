package httpapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/blobcache"
)

// maxUploadBytes bounds decoded upload size.
const maxUploadBytes = 4_500_000

// allowedUploadExts is the closed set of accepted file types.
var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// UploadHandler stores user-submitted report files in the blob store.
type UploadHandler struct {
	store  blobcache.ObjectStore
	logger *zap.Logger
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(store blobcache.ObjectStore, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{store: store, logger: logger}
}

// UploadRequest is the request body for POST /api/upload.
type UploadRequest struct {
	Filename      string `json:"filename"`
	Base64Content string `json:"base64Content"`
}

// UploadResponse is the response body for POST /api/upload.
type UploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// handleUpload decodes and stores an uploaded file. Stored names are
// random, so an uploader cannot overwrite another object.
func (s *Server) handleUpload(c echo.Context) error {
	if s.deps.Uploads == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "uploads are not configured")
	}
	return s.deps.Uploads.Handle(c)
}

// Handle implements the upload endpoint.
func (h *UploadHandler) Handle(c echo.Context) error {
	var req UploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Filename == "" || req.Base64Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "filename and base64Content fields are required")
	}

	ext := strings.ToLower(path.Ext(req.Filename))
	if !allowedUploadExts[ext] {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("file type %q not accepted", ext))
	}

	// Strip an optional data-URL prefix before decoding.
	content := req.Base64Content
	if idx := strings.Index(content, ";base64,"); idx >= 0 {
		content = content[idx+len(";base64,"):]
	}

	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "base64Content is not valid base64")
	}
	if len(payload) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("file exceeds %d byte limit", maxUploadBytes))
	}

	name := fmt.Sprintf("reports/uploaded_%s%s", uuid.NewString(), ext)
	obj, err := h.store.Put(c.Request().Context(), name, payload, contentTypeForExt(ext))
	if err != nil {
		h.logger.Error("upload storage failed", zap.String("name", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "file could not be stored")
	}

	h.logger.Info("stored upload",
		zap.String("filename", req.Filename),
		zap.String("name", name),
		zap.Int("bytes", len(payload)),
	)

	return c.JSON(http.StatusOK, UploadResponse{Success: true, URL: obj.Location})
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}
