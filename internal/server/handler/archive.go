package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// ArchiveHandler serves the admin view over archived settlement snapshots
// and reconcile reports in object storage. It is only mounted when blob
// storage is configured.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler backed by the given reader.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logger,
	}
}

// archiveResponse is the wire shape of one stored archive object.
type archiveResponse struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ListArchives handles GET /api/admin/archives. An optional ?prefix=
// narrows the listing; only the archive trees are reachable, so a prefix
// outside settlements/ or reports/ is rejected.
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "settlements/"
	}
	if !allowedArchivePrefix(prefix) {
		writeError(w, http.StatusBadRequest, "prefix must be under settlements/ or reports/")
		return
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "list archives")
		return
	}

	resp := make([]archiveResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, archiveResponse{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": resp})
}

// GetArchive handles GET /api/admin/archives/{path...}, streaming one
// archived document back out of object storage.
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if !allowedArchivePrefix(path) {
		writeError(w, http.StatusBadRequest, "path must be under settlements/ or reports/")
		return
	}

	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "get archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.ErrorContext(r.Context(), "stream archive",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// allowedArchivePrefix confines archive reads to the trees the Archiver
// writes. Keys are validated before they reach storage, so a traversal
// via ".." never resolves to an archived object.
func allowedArchivePrefix(p string) bool {
	if strings.Contains(p, "..") {
		return false
	}
	return strings.HasPrefix(p, "settlements/") || strings.HasPrefix(p, "reports/")
}
