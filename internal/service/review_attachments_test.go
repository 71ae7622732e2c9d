package service

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/pkg/ai"
)

func TestImageReferences(t *testing.T) {
	content := "Intro ![first](https://a.test/1.png) text ![](https://a.test/2.png)\n![dup](https://a.test/1.png) [link](https://a.test/x)"

	require.Equal(t, []string{"https://a.test/1.png", "https://a.test/2.png", "https://a.test/1.png"}, ImageReferences(content))
	require.Empty(t, ImageReferences("no images here"))
}

func TestExtractorSkipsNonImageContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngHeader)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	extractor := NewAttachmentExtractor(NewHTTPFetcher(time.Second, 1024, true), 2, testLogger())

	require.Empty(t, extractor.Extract(context.Background(), "![page]("+server.URL+"/page)"))
	require.Empty(t, extractor.Extract(context.Background(), "![gone]("+server.URL+"/missing)"))

	segments := extractor.Extract(context.Background(), "![a]("+server.URL+"/page) ![b]("+server.URL+"/image)")
	require.Len(t, segments, 1)
	require.Equal(t, "image/png", segments[0].MimeType)
	require.Equal(t, pngHeader, segments[0].Data)
}

func TestExtractorSniffsMissingContentType(t *testing.T) {
	fetcher := &fetcherStub{resources: map[string]Resource{
		"https://cdn.test/raw": {Data: pngHeader},
		"https://cdn.test/txt": {Data: []byte("just words")},
	}}
	extractor := NewAttachmentExtractor(fetcher, 1, testLogger())

	segments := extractor.Extract(context.Background(), "![](https://cdn.test/raw) ![](https://cdn.test/txt)")
	require.Len(t, segments, 1)
	require.Equal(t, "image/png", segments[0].MimeType)
}

func TestExtractorKeepsOrderWhenFetchesFinishOutOfOrder(t *testing.T) {
	fetcher := &fetcherStub{
		resources: map[string]Resource{
			"https://cdn.test/a.png": {Data: []byte("A"), ContentType: "image/png"},
			"https://cdn.test/b.png": {Data: []byte("B"), ContentType: "image/png"},
		},
		delays: map[string]time.Duration{"https://cdn.test/a.png": 100 * time.Millisecond},
	}
	extractor := NewAttachmentExtractor(fetcher, 2, testLogger())

	segments := extractor.Extract(context.Background(), "![A](https://cdn.test/a.png) then ![B](https://cdn.test/b.png)")

	require.Equal(t, []string{"https://cdn.test/b.png", "https://cdn.test/a.png"}, fetcher.completed)
	require.Len(t, segments, 2)
	require.Equal(t, []byte("A"), segments[0].Data)
	require.Equal(t, []byte("B"), segments[1].Data)
}

func TestExtractorAttachesRepeatedURLsEachTime(t *testing.T) {
	fetcher := &fetcherStub{resources: map[string]Resource{
		"https://cdn.test/a.png": {Data: []byte("A"), ContentType: "image/png; charset=binary"},
	}}
	extractor := NewAttachmentExtractor(fetcher, 2, testLogger())

	segments := extractor.Extract(context.Background(), "![](https://cdn.test/a.png)![](https://cdn.test/a.png)")
	require.Len(t, segments, 2)
	require.Equal(t, "image/png", segments[1].MimeType)
}

func TestHTTPFetcherRejectsSchemesAndOversizedBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(time.Second, 1024, true)

	_, err := fetcher.Fetch(context.Background(), "file:///etc/passwd")
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = fetcher.Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrResourceTooLarge)
}

func TestHTTPFetcherRefusesNonPublicDestinations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89})
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(time.Second, 1024, false)

	for _, target := range []string{server.URL, "http://169.254.169.254/latest/meta-data/", "http://[::1]:9/x.png", "http://10.0.0.8/x.png"} {
		_, err := fetcher.Fetch(context.Background(), target)
		require.ErrorIs(t, err, ErrBlockedDestination, target)
	}
}

func TestIsPublicIP(t *testing.T) {
	cases := map[string]bool{
		"93.184.216.34":   true,
		"2606:4700::1111": true,
		"127.0.0.1":       false,
		"192.168.1.10":    false,
		"172.16.0.1":      false,
		"169.254.169.254": false,
		"fe80::1":         false,
		"0.0.0.0":         false,
	}
	for address, public := range cases {
		require.Equal(t, public, isPublicIP(net.ParseIP(address)), address)
	}
}

func TestPromptBuilderInterleavesImagesAfterTheirSubmission(t *testing.T) {
	fetcher := &fetcherStub{
		resources: map[string]Resource{
			"https://cdn.test/a.png": {Data: []byte("A"), ContentType: "image/png"},
			"https://cdn.test/b.png": {Data: []byte("B"), ContentType: "image/jpeg"},
		},
		delays: map[string]time.Duration{"https://cdn.test/a.png": 50 * time.Millisecond},
	}
	builder := NewPromptBuilder(NewAttachmentExtractor(fetcher, 4, testLogger()))

	bounty := models.Bounty{Title: "Poster", Description: "Event poster"}
	prompt := builder.Build(context.Background(), bounty, []models.Submission{
		{ID: "s1", Content: "![A](https://cdn.test/a.png) ![B](https://cdn.test/b.png)"},
		{ID: "s2", Content: "text only"},
	})

	require.Len(t, prompt, 6)
	require.IsType(t, ai.TextSegment{}, prompt[0])
	require.Contains(t, prompt[1].(ai.TextSegment).Text, "ID: s1")
	require.Equal(t, []byte("A"), prompt[2].(ai.ImageSegment).Data)
	require.Equal(t, []byte("B"), prompt[3].(ai.ImageSegment).Data)
	require.Contains(t, prompt[4].(ai.TextSegment).Text, "ID: s2")
	require.Contains(t, prompt[5].(ai.TextSegment).Text, "```json")
	require.Equal(t, 2, prompt.ImageCount())
}
