package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

type fakeResolver struct {
	name    string
	domains []string
	stream  *models.ResolvedStream
	err     error
	calls   int
}

func (f *fakeResolver) Name() string               { return f.name }
func (f *fakeResolver) SupportedDomains() []string { return f.domains }

func (f *fakeResolver) Resolve(ctx context.Context, url string) (*models.ResolvedStream, error) {
	f.calls++
	return f.stream, f.err
}

// failingTransport refuses every request so canonicalization and probes
// leave URLs untouched.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("no network in test")
}

func newTestRegistry() *Registry {
	client := &http.Client{Transport: failingTransport{}}
	return NewRegistry(client, "test-agent", arbor.NewLogger())
}

func stream(hoster string) *models.ResolvedStream {
	return &models.ResolvedStream{
		DirectURL:  "https://cdn.example/video.mp4",
		HosterName: hoster,
		HeadersRequired: map[string]string{
			"Referer":    "https://" + hoster + ".example/",
			"User-Agent": "test-agent",
		},
	}
}

func TestMatch_HostSuffix(t *testing.T) {
	reg := newTestRegistry()
	voe := &fakeResolver{name: "voe", domains: []string{"voe.sx"}}
	reg.Register(voe)

	assert.Equal(t, voe, reg.Match("https://voe.sx/e/abc123"))
	assert.Equal(t, voe, reg.Match("https://cdn.voe.sx/e/abc123"))
	assert.Nil(t, reg.Match("https://notvoe.sx.example/e/abc123"))
	assert.Nil(t, reg.Match("https://other.example/e/abc123"))
}

func TestMatch_RegistrationOrderBreaksTies(t *testing.T) {
	reg := newTestRegistry()
	first := &fakeResolver{name: "first", domains: []string{"shared.example"}}
	second := &fakeResolver{name: "second", domains: []string{"shared.example"}}
	reg.Register(first)
	reg.Register(second)

	assert.Equal(t, first, reg.Match("https://shared.example/e/x"))
}

func TestResolve_DispatchesToMatch(t *testing.T) {
	reg := newTestRegistry()
	voe := &fakeResolver{name: "voe", domains: []string{"voe.sx"}, stream: stream("voe")}
	reg.Register(voe)

	resolved, err := reg.Resolve(context.Background(), "https://voe.sx/e/abc", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/video.mp4", resolved.DirectURL)
	assert.Equal(t, 1, voe.calls)
}

func TestResolve_HosterHintFallback(t *testing.T) {
	reg := newTestRegistry()
	voe := &fakeResolver{name: "voe", domains: []string{"voe.sx"}, stream: stream("voe")}
	reg.Register(voe)

	// The alias domain matches nothing; the plugin's hint selects the resolver.
	resolved, err := reg.Resolve(context.Background(), "https://alias-rotator.example/e/abc", "VOE")
	require.NoError(t, err)
	assert.Equal(t, "voe", resolved.HosterName)
	assert.Equal(t, 1, voe.calls)
}

func TestResolve_UnknownHint(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Resolve(context.Background(), "https://alias.example/e/abc", "nosuchhoster")
	assert.ErrorIs(t, err, interfaces.ErrNoResolver)
}

func TestResolve_NoMatchNoHint(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Resolve(context.Background(), "https://unknown.example/e/abc", "")
	assert.ErrorIs(t, err, interfaces.ErrNoResolver)
}

func TestResolve_DirectMediaProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry(srv.Client(), "test-agent", arbor.NewLogger())

	resolved, err := reg.Resolve(context.Background(), srv.URL+"/video.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/video.mp4", resolved.DirectURL)
	assert.Equal(t, "direct", resolved.HosterName)
	assert.Equal(t, "test-agent", resolved.HeadersRequired["User-Agent"])
}

func TestResolve_HTMLPageIsNotDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	reg := NewRegistry(srv.Client(), "test-agent", arbor.NewLogger())

	_, err := reg.Resolve(context.Background(), srv.URL+"/page", "")
	assert.ErrorIs(t, err, interfaces.ErrNoResolver)
}

func TestResolve_ResolverErrorPropagates(t *testing.T) {
	reg := newTestRegistry()
	offline := &fakeResolver{
		name:    "voe",
		domains: []string{"voe.sx"},
		err:     interfaces.ErrHosterOffline,
	}
	reg.Register(offline)

	_, err := reg.Resolve(context.Background(), "https://voe.sx/e/gone", "")
	assert.ErrorIs(t, err, interfaces.ErrHosterOffline)
}
