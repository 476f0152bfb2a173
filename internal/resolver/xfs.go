package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

const pageBodyCap = 2 << 20 // 2 MiB of hoster page is plenty

// File URL patterns emitted by XFS player setups, checked in order.
var xfsFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`file\s*:\s*"(https?://[^"]+\.(?:m3u8|mp4)[^"]*)"`),
	regexp.MustCompile(`sources\s*:\s*\[\s*\{\s*file\s*:\s*"(https?://[^"]+)"`),
	regexp.MustCompile(`src\s*:\s*"(https?://[^"]+\.(?:m3u8|mp4)[^"]*)"`),
}

// XFSConfig parameterizes one hoster of the XFS file-host family. The
// long tail of XFS clones differs only in name, domains, and offline
// markers, so a value-typed config keeps them data-driven.
type XFSConfig struct {
	Name           string
	Domains        []string
	FileIDPattern  string   // optional; validates the URL carries a file id
	OfflineMarkers []string // page substrings that mean the file is gone
}

// XFSResolver resolves the XFS family of file hosters: fetch the embed
// page, unpack the packed player script if present, and pull the file URL.
type XFSResolver struct {
	cfg       XFSConfig
	fileID    *regexp.Regexp
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewXFS creates a parametric XFS resolver.
func NewXFS(cfg XFSConfig, client *http.Client, userAgent string, logger arbor.ILogger) *XFSResolver {
	var fileID *regexp.Regexp
	if cfg.FileIDPattern != "" {
		fileID = regexp.MustCompile(cfg.FileIDPattern)
	}
	if len(cfg.OfflineMarkers) == 0 {
		cfg.OfflineMarkers = []string{"File Not Found", "file was deleted", "File is no longer available"}
	}
	return &XFSResolver{
		cfg:       cfg,
		fileID:    fileID,
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (x *XFSResolver) Name() string               { return x.cfg.Name }
func (x *XFSResolver) SupportedDomains() []string { return x.cfg.Domains }

func (x *XFSResolver) Resolve(ctx context.Context, pageURL string) (*models.ResolvedStream, error) {
	if x.fileID != nil && !x.fileID.MatchString(pageURL) {
		return nil, fmt.Errorf("%s: url carries no file id: %s", x.cfg.Name, pageURL)
	}

	body, err := fetchPage(ctx, x.client, pageURL, x.userAgent)
	if err != nil {
		return nil, err
	}
	return x.Extract(pageURL, body)
}

// Extract pulls the file URL out of an already-fetched page body.
func (x *XFSResolver) Extract(pageURL, body string) (*models.ResolvedStream, error) {
	for _, marker := range x.cfg.OfflineMarkers {
		if strings.Contains(body, marker) {
			return nil, fmt.Errorf("%w: %s (%s)", interfaces.ErrHosterOffline, pageURL, x.cfg.Name)
		}
	}

	script := body
	if IsPacked(body) {
		unpacked, err := Unpack(body)
		if err != nil {
			return nil, fmt.Errorf("%s: unpack failed: %w", x.cfg.Name, err)
		}
		script = unpacked
	}

	for _, pattern := range xfsFilePatterns {
		if m := pattern.FindStringSubmatch(script); m != nil {
			return &models.ResolvedStream{
				DirectURL:  m[1],
				HosterName: x.cfg.Name,
				HeadersRequired: map[string]string{
					"Referer":    pageURL,
					"User-Agent": x.userAgent,
				},
			}, nil
		}
	}

	return nil, fmt.Errorf("%s: no file url in player setup: %s", x.cfg.Name, pageURL)
}

// fetchPage GETs a hoster page with a body cap and classified errors.
func fetchPage(ctx context.Context, client *http.Client, pageURL, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", httpclient.ClassifyError(pageURL, err)
	}
	defer resp.Body.Close()

	if fe := httpclient.ClassifyStatus(pageURL, resp.StatusCode); fe != nil {
		return "", fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageBodyCap))
	if err != nil {
		return "", httpclient.ClassifyError(pageURL, err)
	}
	return string(body), nil
}

var _ interfaces.Resolver = (*XFSResolver)(nil)
