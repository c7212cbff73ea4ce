// Package fetch retrieves content text and narration audio over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/errors"
)

// DurationHeader carries the narration length in seconds when the audio host
// knows it. Without it the duration is derived from the payload size.
const DurationHeader = "X-Audio-Duration"

// AudioPayload is a fetched narration asset.
type AudioPayload struct {
	Data            []byte
	DurationSeconds float64
}

// HTTPFetcher fetches payloads with a bounded timeout and a size cap.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHTTPFetcher creates a fetcher. maxBytes caps a single payload read to
// prevent memory exhaustion.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		timeout:  timeout,
		logger:   logger,
	}
}

// FetchText resolves the text payload of a content item. Inline text from the
// descriptor wins; otherwise the text URL is fetched.
func (f *HTTPFetcher) FetchText(ctx context.Context, desc domain.ContentDescriptor) ([]byte, error) {
	if desc.TextContent != "" {
		return []byte(desc.TextContent), nil
	}
	if desc.TextURL == "" {
		return nil, errors.FetchFailedf("item %s has neither inline text nor a text URL", desc.ItemID)
	}

	data, _, err := f.get(ctx, desc.TextURL)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// FetchAudio attempts the convention-based narration lookup. A missing asset
// (404) is not an error: the item is still downloadable text-only, so the
// result is (nil, nil).
func (f *HTTPFetcher) FetchAudio(ctx context.Context, url string) (*AudioPayload, error) {
	if url == "" {
		return nil, nil
	}

	data, header, err := f.get(ctx, url)
	if errors.Is(err, errNotFound) {
		if f.logger != nil {
			f.logger.Debug("no narration audio at hint", "url", url)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	payload := &AudioPayload{Data: data}
	if v := header.Get(DurationHeader); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d > 0 {
			payload.DurationSeconds = d
		}
	}
	if payload.DurationSeconds == 0 {
		// Derive a duration from the raw size so the size estimate stays
		// self-consistent.
		payload.DurationSeconds = float64(len(data)) / float64(domain.AudioSampleRate*domain.AudioBytesPerSample)
	}
	return payload, nil
}

// errNotFound distinguishes a 404 from other fetch failures internally.
var errNotFound = errors.NotFound("asset not found")

// get performs a size-limited GET with the fetcher's timeout.
func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, http.Header, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeFetchFailed, "create request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.CodeFetchFailed, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.FetchFailedf("fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeFetchFailed, fmt.Sprintf("read %s", url))
	}
	return data, resp.Header, nil
}
