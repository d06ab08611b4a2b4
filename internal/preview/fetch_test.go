package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstURL(t *testing.T) {
	assert.Equal(t, "", FirstURL("no links here"))
	assert.Equal(t, "https://example.com/a", FirstURL("see https://example.com/a and http://other.example"))
	assert.Equal(t, "http://example.com", FirstURL("go to http://example.com now"))
}

func TestFetch_OpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head>
			<title>Fallback Title</title>
			<meta property="og:title" content="OG Title">
			<meta property="og:description" content="A description">
			<meta property="og:image" content="https://cdn.example/img.png">
			<meta property="og:site_name" content="Example">
		</head><body>ignored</body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	p, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "OG Title", p.Title)
	assert.Equal(t, "A description", p.Description)
	assert.Equal(t, "https://cdn.example/img.png", p.ImageURL)
	assert.Equal(t, "Example", p.SiteName)
	assert.Equal(t, srv.URL, p.URL)
}

func TestFetch_TitleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>  Plain Title  </title></head><body></body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	p, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Plain Title", p.Title)
}

func TestFetch_NoMetadataFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head></head><body>nothing</body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetch_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetch_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetch_SetsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>x</title></head></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ripple-link-preview/1.0", ua)
}
