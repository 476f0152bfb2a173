// Package crawljob builds, serializes, and stores the download packaging
// jobs served to click-n-load clients at /download/{job_id}.
package crawljob

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scavengarr/scavengarr/internal/models"
)

const fallbackPackageName = "Scavengarr Download"

// FromResult packages one validated search result into a CrawlJob. Results
// with zero validated links are rejected: a job must always carry at least
// one live URL.
func FromResult(result *models.SearchResult, ttl time.Duration, now time.Time) (*models.CrawlJob, error) {
	if len(result.ValidatedLinks) == 0 {
		return nil, fmt.Errorf("result %q has no validated links", result.Title)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	packageName := strings.TrimSpace(result.Title)
	if packageName == "" {
		packageName = fallbackPackageName
	}

	var comments []string
	if result.Description != "" {
		comments = append(comments, result.Description)
	}
	if result.Size != "" {
		comments = append(comments, "Size: "+result.Size)
	}
	if result.SourceURL != "" {
		comments = append(comments, "Source: "+result.SourceURL)
	}

	filename := ""
	if result.ReleaseName != "" {
		filename = sanitizeFilename(result.ReleaseName)
	}

	return &models.CrawlJob{
		JobID:       uuid.NewString(),
		Text:        strings.Join(result.ValidatedLinks, "\r\n"),
		PackageName: packageName,
		Filename:    filename,
		Comment:     strings.Join(comments, " | "),
		SourceURL:   result.SourceURL,

		ValidatedURLs: append([]string(nil), result.ValidatedLinks...),

		CreatedAt: now,
		ExpiresAt: now.Add(ttl),

		AutoStart:            models.JobBoolTrue,
		AutoConfirm:          models.JobBoolTrue,
		ForcedStart:          models.JobBoolUnset,
		Enabled:              models.JobBoolTrue,
		ExtractAfterDownload: models.JobBoolTrue,
		Priority:             models.PriorityDefault,
	}, nil
}

// sanitizeFilename keeps the package name usable as a filename component.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	cleaned := replacer.Replace(name)
	if len(cleaned) > 120 {
		cleaned = cleaned[:120]
	}
	return strings.TrimSpace(cleaned)
}
