package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
)

// Packed player setup that decodes to
// jwplayer("vplayer").setup({file:"https://cdn.example/hls/master.m3u8"});
const xfsPackedPage = `<html><script>eval(function(p,a,c,k,e,d){return p}('0("vplayer").1({2:"3"});',4,4,'jwplayer|setup|file|https://cdn.example/hls/master.m3u8'.split('|'),0,{}))</script></html>`

func newTestXFS(cfg XFSConfig) *XFSResolver {
	return NewXFS(cfg, http.DefaultClient, "test-agent", arbor.NewLogger())
}

func TestXFS_Extract(t *testing.T) {
	x := newTestXFS(XFSConfig{Name: "filemoon", Domains: []string{"filemoon.sx"}})

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "plain file setup",
			body: `<script>jwplayer("vplayer").setup({file:"https://cdn.example/v/master.m3u8"});</script>`,
			want: "https://cdn.example/v/master.m3u8",
		},
		{
			name: "sources array",
			body: `<script>player.setup({sources: [{file: "https://cdn.example/v/video.mp4"}]});</script>`,
			want: "https://cdn.example/v/video.mp4",
		},
		{
			name: "src attribute",
			body: `<script>video.src : "https://cdn.example/v/clip.mp4";</script>`,
			want: "https://cdn.example/v/clip.mp4",
		},
		{
			name: "packed player script",
			body: xfsPackedPage,
			want: "https://cdn.example/hls/master.m3u8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := x.Extract("https://filemoon.sx/e/abc", tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stream.DirectURL)
			assert.Equal(t, "filemoon", stream.HosterName)
			assert.Equal(t, "https://filemoon.sx/e/abc", stream.HeadersRequired["Referer"])
			assert.Equal(t, "test-agent", stream.HeadersRequired["User-Agent"])
		})
	}
}

func TestXFS_OfflineMarkers(t *testing.T) {
	x := newTestXFS(XFSConfig{Name: "vidoza", Domains: []string{"vidoza.net"}})

	_, err := x.Extract("https://vidoza.net/e/abc", `<h1>File Not Found</h1>`)
	assert.ErrorIs(t, err, interfaces.ErrHosterOffline)

	custom := newTestXFS(XFSConfig{
		Name:           "supervideo",
		Domains:        []string{"supervideo.cc"},
		OfflineMarkers: []string{"Datei entfernt"},
	})
	_, err = custom.Extract("https://supervideo.cc/e/abc", `<p>Datei entfernt</p>`)
	assert.ErrorIs(t, err, interfaces.ErrHosterOffline)
}

func TestXFS_NoFileURL(t *testing.T) {
	x := newTestXFS(XFSConfig{Name: "filemoon", Domains: []string{"filemoon.sx"}})

	_, err := x.Extract("https://filemoon.sx/e/abc", `<html><p>blank player</p></html>`)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrHosterOffline)
}

func TestXFS_FileIDPattern(t *testing.T) {
	x := newTestXFS(XFSConfig{
		Name:          "filemoon",
		Domains:       []string{"filemoon.sx"},
		FileIDPattern: `/e/[a-z0-9]{12}`,
	})

	_, err := x.Resolve(context.Background(), "https://filemoon.sx/faq")
	assert.ErrorContains(t, err, "no file id")
}

func TestXFS_ResolveFetchesAndExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, xfsPackedPage)
	}))
	defer srv.Close()

	x := newTestXFS(XFSConfig{Name: "filemoon", Domains: []string{"filemoon.sx"}})
	x.client = srv.Client()

	stream, err := x.Resolve(context.Background(), srv.URL+"/e/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/hls/master.m3u8", stream.DirectURL)
	assert.Equal(t, srv.URL+"/e/abc", stream.HeadersRequired["Referer"])
}

func TestXFS_ResolveSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	x := newTestXFS(XFSConfig{Name: "filemoon", Domains: []string{"filemoon.sx"}})
	x.client = srv.Client()

	_, err := x.Resolve(context.Background(), srv.URL+"/e/abc")
	assert.Error(t, err)
}
