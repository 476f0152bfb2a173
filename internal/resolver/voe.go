package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

var (
	voeRedirect = regexp.MustCompile(`window\.location\.href\s*=\s*'(https?://[^']+)'`)
	voeHLSB64   = regexp.MustCompile(`'hls'\s*:\s*'([A-Za-z0-9+/=]+)'`)
	voeHLSPlain = regexp.MustCompile(`"hls"\s*:\s*"(https?://[^"]+)"`)
	voeMP4      = regexp.MustCompile(`'mp4'\s*:\s*'([A-Za-z0-9+/=]+)'`)
)

// VOEResolver handles voe.sx and its rotating alias domains. The embed
// page either redirects to the current primary domain or inlines a player
// config whose hls source is base64 encoded.
type VOEResolver struct {
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewVOE creates the VOE resolver.
func NewVOE(client *http.Client, userAgent string, logger arbor.ILogger) *VOEResolver {
	return &VOEResolver{client: client, userAgent: userAgent, logger: logger}
}

func (v *VOEResolver) Name() string { return "voe" }

func (v *VOEResolver) SupportedDomains() []string {
	return []string{"voe.sx", "voe.bar", "voeun-block.net", "un-block-voe.net", "v-o-e-unblock.com"}
}

func (v *VOEResolver) Resolve(ctx context.Context, pageURL string) (*models.ResolvedStream, error) {
	body, err := fetchPage(ctx, v.client, pageURL, v.userAgent)
	if err != nil {
		return nil, err
	}

	// Alias domains serve a one-line redirect stub to the live domain.
	if m := voeRedirect.FindStringSubmatch(body); m != nil && m[1] != pageURL {
		v.logger.Debug().Str("from", pageURL).Str("to", m[1]).Msg("Following VOE alias redirect")
		pageURL = m[1]
		body, err = fetchPage(ctx, v.client, pageURL, v.userAgent)
		if err != nil {
			return nil, err
		}
	}

	if strings.Contains(body, "File not found") || strings.Contains(body, "This video does not exist") {
		return nil, fmt.Errorf("%w: %s (voe)", interfaces.ErrHosterOffline, pageURL)
	}

	directURL := ""
	if m := voeHLSPlain.FindStringSubmatch(body); m != nil {
		directURL = m[1]
	} else if m := voeHLSB64.FindStringSubmatch(body); m != nil {
		if decoded, err := base64.StdEncoding.DecodeString(m[1]); err == nil {
			directURL = string(decoded)
		}
	} else if m := voeMP4.FindStringSubmatch(body); m != nil {
		if decoded, err := base64.StdEncoding.DecodeString(m[1]); err == nil {
			directURL = string(decoded)
		}
	}

	if directURL == "" || !strings.HasPrefix(directURL, "http") {
		return nil, fmt.Errorf("voe: no playable source on %s", pageURL)
	}

	return &models.ResolvedStream{
		DirectURL:  directURL,
		HosterName: "voe",
		HeadersRequired: map[string]string{
			"Referer":    pageURL,
			"User-Agent": v.userAgent,
		},
	}, nil
}

var _ interfaces.Resolver = (*VOEResolver)(nil)
