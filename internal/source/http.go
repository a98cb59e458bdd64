package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mediacore/playback/internal/mcerrors"
)

// HTTP is the ranged-HTTP Source Adapter variant (spec.md §4.1): issues
// byte-range GET requests, failing with ErrSourceIO when the origin does
// not honor them. The client's transport is wrapped with otelhttp so every
// range request produces a trace span and request/latency metrics.
type HTTP struct {
	url    string
	client *http.Client

	size atomic.Int64 // 0 until first successful Size() / range response
}

// NewHTTP creates a ranged-HTTP source for url using client, or
// http.DefaultClient's transport (wrapped) if client is nil.
func NewHTTP(url string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(client.Transport)
	return &HTTP{url: url, client: client}
}

func (h *HTTP) Key() Key {
	return Key{Kind: "http", Locator: h.url}
}

func (h *HTTP) Size(ctx context.Context) (uint64, error) {
	if n := h.size.Load(); n > 0 {
		return uint64(n), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url, nil)
	if err != nil {
		return 0, mcerrors.Of(mcerrors.ErrSourceIO, "build HEAD request for %s", h.url)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, mcerrors.Of(mcerrors.ErrSourceIO, "HEAD %s", h.url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return 0, mcerrors.Of(mcerrors.ErrSourceIO, "HEAD %s: status %d", h.url, resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		h.size.Store(resp.ContentLength)
	}
	return uint64(h.size.Load()), nil
}

func (h *HTTP) Read(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, mcerrors.Of(mcerrors.ErrSourceIO, "build range request for %s", h.url)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(length)-1))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, mcerrors.Of(mcerrors.ErrSourceIO, "range GET %s", h.url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		// Origin ignored the Range header and returned the whole body;
		// the spec requires range support, so treat this as rejection
		// unless that whole body is exactly the requested range (offset 0
		// and a declared length equal to the requested length).
		if offset != 0 || resp.ContentLength != int64(length) {
			return nil, mcerrors.Of(mcerrors.ErrSourceIO, "range rejected by origin %s", h.url)
		}
	} else if resp.StatusCode != http.StatusPartialContent {
		return nil, mcerrors.Of(mcerrors.ErrSourceIO, "range GET %s: status %d", h.url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mcerrors.Of(mcerrors.ErrSourceIO, "read range body from %s", h.url)
	}
	return body, nil
}

func (h *HTTP) Seek(ctx context.Context, offset uint64) error {
	// Ranged HTTP has no persistent cursor; this is a pure hint no-op.
	return nil
}

func (h *HTTP) Close() error {
	if t, ok := h.client.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

var _ Handle = (*HTTP)(nil)
