package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
)

const voeStreamURL = "https://delivery.example/engine/hls/master.m3u8"

func voeB64Page() string {
	encoded := base64.StdEncoding.EncodeToString([]byte(voeStreamURL))
	return fmt.Sprintf(`<html><script>
var sources = {
  'hls': '%s',
  'video_height': 1080,
};
</script></html>`, encoded)
}

func TestVOE_ResolvesBase64HLS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, voeB64Page())
	}))
	defer srv.Close()

	v := NewVOE(srv.Client(), "test-agent", arbor.NewLogger())
	stream, err := v.Resolve(context.Background(), srv.URL+"/e/abcd1234")
	require.NoError(t, err)

	assert.Equal(t, voeStreamURL, stream.DirectURL)
	assert.Equal(t, "voe", stream.HosterName)
	assert.Equal(t, srv.URL+"/e/abcd1234", stream.HeadersRequired["Referer"])
	assert.Equal(t, "test-agent", stream.HeadersRequired["User-Agent"])
}

func TestVOE_ResolvesPlainHLS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<script>var config = {"hls": "%s"};</script>`, voeStreamURL)
	}))
	defer srv.Close()

	v := NewVOE(srv.Client(), "test-agent", arbor.NewLogger())
	stream, err := v.Resolve(context.Background(), srv.URL+"/e/abcd1234")
	require.NoError(t, err)
	assert.Equal(t, voeStreamURL, stream.DirectURL)
}

func TestVOE_ResolvesBase64MP4Fallback(t *testing.T) {
	mp4 := "https://delivery.example/engine/dl/video.mp4"
	encoded := base64.StdEncoding.EncodeToString([]byte(mp4))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<script>var sources = {'mp4': '%s'};</script>`, encoded)
	}))
	defer srv.Close()

	v := NewVOE(srv.Client(), "test-agent", arbor.NewLogger())
	stream, err := v.Resolve(context.Background(), srv.URL+"/e/abcd1234")
	require.NoError(t, err)
	assert.Equal(t, mp4, stream.DirectURL)
}

func TestVOE_FollowsAliasRedirect(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/e/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, voeB64Page())
	})
	mux.HandleFunc("/e/alias", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<script>window.location.href = '%s/e/main';</script>`, srv.URL)
	})

	v := NewVOE(srv.Client(), "test-agent", arbor.NewLogger())
	stream, err := v.Resolve(context.Background(), srv.URL+"/e/alias")
	require.NoError(t, err)

	assert.Equal(t, voeStreamURL, stream.DirectURL)
	// Referer must be the page that served the source, not the alias stub.
	assert.Equal(t, srv.URL+"/e/main", stream.HeadersRequired["Referer"])
}

func TestVOE_OfflineFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><h1>File not found</h1></html>`)
	}))
	defer srv.Close()

	v := NewVOE(srv.Client(), "test-agent", arbor.NewLogger())
	_, err := v.Resolve(context.Background(), srv.URL+"/e/gone")
	assert.ErrorIs(t, err, interfaces.ErrHosterOffline)
}

func TestVOE_NoPlayableSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><p>nothing to see</p></html>`)
	}))
	defer srv.Close()

	v := NewVOE(srv.Client(), "test-agent", arbor.NewLogger())
	_, err := v.Resolve(context.Background(), srv.URL+"/e/empty")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrHosterOffline)
}
