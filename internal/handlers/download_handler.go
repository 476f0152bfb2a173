package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/crawljob"
	"github.com/scavengarr/scavengarr/internal/interfaces"
)

// DownloadHandler serves stored CrawlJobs to download managers.
type DownloadHandler struct {
	jobs   interfaces.CrawlJobRepository
	logger arbor.ILogger
}

// NewDownloadHandler creates the handler.
func NewDownloadHandler(jobs interfaces.CrawlJobRepository, logger arbor.ILogger) *DownloadHandler {
	return &DownloadHandler{jobs: jobs, logger: logger}
}

// Handle handles GET /api/v1/download/{job_id} and its /info subpath.
func (h *DownloadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/download/"), "/")
	jobID, sub, _ := strings.Cut(rest, "/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "missing job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "crawljob not found or expired")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("CrawlJob lookup failed")
		WriteError(w, http.StatusInternalServerError, "crawljob lookup failed")
		return
	}

	if sub == "info" {
		WriteJSON(w, http.StatusOK, job)
		return
	}

	body := crawljob.Serialize(job)
	filename := safeAttachmentName(job.PackageName, job.JobID)

	w.Header().Set("Content-Type", "application/x-crawljob")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-CrawlJob-ID", job.JobID)
	w.Header().Set("X-CrawlJob-Package", job.PackageName)
	w.Header().Set("X-CrawlJob-Links", strconv.Itoa(len(job.ValidatedURLs)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// safeAttachmentName builds "<safe>_<id>.crawljob" with a filesystem-safe
// package prefix.
func safeAttachmentName(packageName, jobID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, packageName)
	safe = strings.Trim(safe, "_")
	if len(safe) > 64 {
		safe = safe[:64]
	}
	if safe == "" {
		safe = "download"
	}
	return safe + "_" + jobID + ".crawljob"
}
