package opener

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
)

// HTTPOpener downloads import files. Bodies larger than MaxBytes are cut off
// with an error.
type HTTPOpener struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPOpener(cli *http.Client) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{}
	}
	return &HTTPOpener{Client: cli, MaxBytes: 256 << 20}
}

func (h *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, ports.Meta, error) {
	log.Printf("[OPENER][HTTP][START] url=%q", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.Meta{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		log.Printf("[OPENER][HTTP][ERR] do request: %v", err)
		return nil, ports.Meta{}, err
	}

	ct := resp.Header.Get("Content-Type")
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ports.Meta{}, fmt.Errorf("http %s: %w", url, models.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		log.Printf("[OPENER][HTTP][ERR] status=%d content_type=%q", resp.StatusCode, ct)
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}
	if h.MaxBytes > 0 && resp.ContentLength > h.MaxBytes {
		resp.Body.Close()
		return nil, ports.Meta{}, fmt.Errorf("%w: file of %d bytes exceeds %d", models.ErrInvalidInput, resp.ContentLength, h.MaxBytes)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	log.Printf("[OPENER][HTTP][OK] content_type=%q size=%d", ct, size)

	body := resp.Body
	if h.MaxBytes > 0 {
		body = &limitedBody{r: io.LimitReader(resp.Body, h.MaxBytes+1), c: resp.Body, left: h.MaxBytes + 1}
	}
	return body, ports.Meta{
		Source:      "https",
		ContentType: ct,
		Size:        size,
	}, nil
}

type limitedBody struct {
	r    io.Reader
	c    io.Closer
	left int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left <= 0 {
		return n, fmt.Errorf("%w: download exceeds size limit", models.ErrInvalidInput)
	}
	return n, err
}

func (l *limitedBody) Close() error { return l.c.Close() }
