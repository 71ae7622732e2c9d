package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/monquest-api/internal/observability"
	"github.com/noah-isme/monquest-api/pkg/ai"
)

var (
	// ErrUnsupportedScheme indicates an image reference that is not http(s).
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrResourceTooLarge indicates a remote resource above the size limit.
	ErrResourceTooLarge = errors.New("remote resource too large")
	// ErrBlockedDestination indicates an image reference resolving to a non-public address.
	ErrBlockedDestination = errors.New("destination address not allowed")
)

var imageReferencePattern = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)

// Resource is a fetched remote payload with its declared content type.
type Resource struct {
	Data        []byte
	ContentType string
}

// ResourceFetcher retrieves remote resources referenced from submission content.
type ResourceFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Resource, error)
}

// HTTPFetcher fetches resources over plain HTTP(S) with a timeout and size cap.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher constructs a fetcher. Zero values fall back to 10s and 8 MiB.
// Unless allowPrivate is set, connections to loopback, private, link-local and
// other non-public addresses are refused at dial time, after DNS resolution.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, allowPrivate bool) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 8 * 1024 * 1024
	}

	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = publicOnly
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout, Transport: transport},
		maxBytes: maxBytes,
	}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedDestination, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

// Fetch performs one GET without retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Resource, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Resource{}, fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Resource{}, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Resource{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Resource{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return Resource{}, ErrResourceTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Resource{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Resource{}, ErrResourceTooLarge
	}

	return Resource{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// ImageReferences returns the urls of all markdown image references in content,
// in order of appearance. Repeated urls are kept.
func ImageReferences(content string) []string {
	matches := imageReferencePattern.FindAllStringSubmatch(content, -1)
	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		if ref := strings.TrimSpace(match[1]); ref != "" {
			urls = append(urls, ref)
		}
	}
	return urls
}

// AttachmentExtractor turns image references in submission content into inline
// prompt attachments. Every per-url failure is skipped.
type AttachmentExtractor struct {
	fetcher     ResourceFetcher
	concurrency int
	logger      zerolog.Logger
}

// NewAttachmentExtractor constructs an extractor fetching up to concurrency urls at once.
func NewAttachmentExtractor(fetcher ResourceFetcher, concurrency int, logger zerolog.Logger) *AttachmentExtractor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &AttachmentExtractor{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "attachment_extractor").Logger(),
	}
}

// Extract fetches every referenced image. Fetches run concurrently; the result
// keeps the order in which the references appear.
func (e *AttachmentExtractor) Extract(ctx context.Context, content string) []ai.ImageSegment {
	urls := ImageReferences(content)
	if len(urls) == 0 {
		return nil
	}

	slots := make([]*ai.ImageSegment, len(urls))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, ref := range urls {
		g.Go(func() error {
			if segment, ok := e.fetchOne(ctx, ref); ok {
				slots[i] = &segment
			}
			return nil
		})
	}
	_ = g.Wait()

	segments := make([]ai.ImageSegment, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			segments = append(segments, *slot)
		}
	}
	return segments
}

func (e *AttachmentExtractor) fetchOne(ctx context.Context, ref string) (ai.ImageSegment, bool) {
	resource, err := e.fetcher.Fetch(ctx, ref)
	if err != nil {
		observability.AttachmentFetches().WithLabelValues("error").Inc()
		e.logger.Debug().Err(err).Str("url", ref).Msg("skipping attachment")
		return ai.ImageSegment{}, false
	}

	contentType := normalizeMime(resource.ContentType)
	if contentType == "" {
		contentType = normalizeMime(mimetype.Detect(resource.Data).String())
	}
	if !strings.HasPrefix(contentType, "image/") {
		observability.AttachmentFetches().WithLabelValues("not_image").Inc()
		e.logger.Debug().Str("url", ref).Str("content_type", contentType).Msg("skipping non-image attachment")
		return ai.ImageSegment{}, false
	}

	observability.AttachmentFetches().WithLabelValues("ok").Inc()
	observability.AttachmentBytes().Observe(float64(len(resource.Data)))
	return ai.ImageSegment{MimeType: contentType, Data: resource.Data}, true
}
