package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/models"
)

func TestCinemeta_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meta/movie/tt1375666.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"meta":{"name":"Inception","year":"2010","type":"movie","aka":["Origen"]}}`))
	}))
	defer srv.Close()

	c := NewCinemeta(srv.Client(), "test-agent", srv.URL, arbor.NewLogger())
	title, err := c.Resolve(context.Background(), "tt1375666", "movie")
	require.NoError(t, err)

	assert.Equal(t, "Inception", title.Title)
	assert.Equal(t, 2010, title.Year)
	assert.Equal(t, "movie", title.Type)
	assert.Equal(t, []string{"Origen"}, title.Aliases)
}

func TestCinemeta_SeriesYearRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"name":"Dark","releaseInfo":"2017-2020","type":"series"}}`))
	}))
	defer srv.Close()

	c := NewCinemeta(srv.Client(), "test-agent", srv.URL, arbor.NewLogger())
	title, err := c.Resolve(context.Background(), "tt5753856", "series")
	require.NoError(t, err)
	assert.Equal(t, 2017, title.Year)
}

func TestCinemeta_UnknownID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{}}`))
	}))
	defer srv.Close()

	c := NewCinemeta(srv.Client(), "test-agent", srv.URL, arbor.NewLogger())
	_, err := c.Resolve(context.Background(), "tt0000000", "movie")
	assert.Error(t, err)
}

func TestCinemeta_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCinemeta(srv.Client(), "test-agent", srv.URL, arbor.NewLogger())
	_, err := c.Resolve(context.Background(), "tt1375666", "movie")
	assert.Error(t, err)
}

func TestFirstYear(t *testing.T) {
	assert.Equal(t, 2019, firstYear("2019"))
	assert.Equal(t, 2019, firstYear("2019-2023"))
	assert.Equal(t, 2019, firstYear("", "2019-2023"))
	assert.Equal(t, 0, firstYear("n/a", ""))
	assert.Equal(t, 0, firstYear("1500"))
}

type stubTitleResolver struct {
	title *models.ResolvedTitle
	err   error
	calls int
}

func (s *stubTitleResolver) Resolve(ctx context.Context, imdbID, mediaType string) (*models.ResolvedTitle, error) {
	s.calls++
	return s.title, s.err
}

func TestTitleChain_FallsThrough(t *testing.T) {
	primary := &stubTitleResolver{err: errors.New("not found")}
	fallback := &stubTitleResolver{title: &models.ResolvedTitle{Title: "Inception"}}

	chain := NewTitleChain(arbor.NewLogger(), primary, fallback)
	title, err := chain.Resolve(context.Background(), "tt1375666", "movie")
	require.NoError(t, err)

	assert.Equal(t, "Inception", title.Title)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestTitleChain_FirstSuccessWins(t *testing.T) {
	primary := &stubTitleResolver{title: &models.ResolvedTitle{Title: "Inception"}}
	fallback := &stubTitleResolver{title: &models.ResolvedTitle{Title: "Wrong"}}

	chain := NewTitleChain(arbor.NewLogger(), primary, fallback)
	title, err := chain.Resolve(context.Background(), "tt1375666", "movie")
	require.NoError(t, err)

	assert.Equal(t, "Inception", title.Title)
	assert.Zero(t, fallback.calls)
}

func TestTitleChain_AllFail(t *testing.T) {
	wantErr := errors.New("suggest down")
	chain := NewTitleChain(arbor.NewLogger(),
		&stubTitleResolver{err: errors.New("cinemeta down")},
		&stubTitleResolver{err: wantErr},
	)

	_, err := chain.Resolve(context.Background(), "tt1375666", "movie")
	assert.ErrorIs(t, err, wantErr)
}
