package resolver

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

// Streamtape hides the stream URL as two concatenated script fragments:
// the visible innerHTML assignment plus a substring()-trimmed token.
var (
	tapeLinkPattern  = regexp.MustCompile(`getElementById\('(?:robotlink|ideoolink)'\)\.innerHTML\s*=\s*'([^']*)'\s*\+\s*\('([^']*)'\)`)
	tapeTokenTrimLen = 4 // site JS applies .substring(4) to the second fragment
)

// StreamtapeResolver handles streamtape.com and aliases.
type StreamtapeResolver struct {
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewStreamtape creates the Streamtape resolver.
func NewStreamtape(client *http.Client, userAgent string, logger arbor.ILogger) *StreamtapeResolver {
	return &StreamtapeResolver{client: client, userAgent: userAgent, logger: logger}
}

func (s *StreamtapeResolver) Name() string { return "streamtape" }

func (s *StreamtapeResolver) SupportedDomains() []string {
	return []string{"streamtape.com", "streamtape.net", "strtape.cloud", "strtpe.link", "shavetape.cash"}
}

func (s *StreamtapeResolver) Resolve(ctx context.Context, pageURL string) (*models.ResolvedStream, error) {
	body, err := fetchPage(ctx, s.client, pageURL, s.userAgent)
	if err != nil {
		return nil, err
	}

	if strings.Contains(body, "Video not found") {
		return nil, fmt.Errorf("%w: %s (streamtape)", interfaces.ErrHosterOffline, pageURL)
	}

	m := tapeLinkPattern.FindStringSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("streamtape: no video link fragments on %s", pageURL)
	}

	fragment := m[2]
	if len(fragment) > tapeTokenTrimLen {
		fragment = fragment[tapeTokenTrimLen:]
	}
	link := strings.TrimSpace(m[1] + fragment)
	link = strings.TrimPrefix(link, "//")
	directURL := "https://" + link + "&stream=1"

	return &models.ResolvedStream{
		DirectURL:  directURL,
		HosterName: "streamtape",
		HeadersRequired: map[string]string{
			"Referer":    pageURL,
			"User-Agent": s.userAgent,
		},
	}, nil
}

var _ interfaces.Resolver = (*StreamtapeResolver)(nil)
