package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/errors"
	"github.com/readwellapp/readwell-server/internal/id"
)

const (
	documentPath  = "/v1/progress"
	subscribePath = "/v1/progress/events"

	// reconnectDelay paces subscription reconnects after a dropped stream.
	reconnectDelay = 5 * time.Second

	maxDocumentBytes = 10 << 20
)

// Client is the HTTP implementation of Store.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a remote client. timeout bounds document reads and
// writes; the subscription stream is exempt since it is long-lived.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) GetDocument(ctx context.Context) (*domain.RemoteDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+documentPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "build document request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRemoteUnavailable, "fetch remote document")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.RemoteUnavailablef("remote returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRemoteUnavailable, "read remote document")
	}

	var doc domain.RemoteDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedRemoteData, "decode remote document")
	}
	return &doc, nil
}

func (c *Client) UpsertDocument(ctx context.Context, doc *domain.RemoteDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode remote document")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+documentPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build document request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeRemoteUnavailable, "push remote document")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.RemoteUnavailablef("remote returned status %d", resp.StatusCode)
	}
	return nil
}

// Subscribe opens the server-sent-events stream and delivers each decoded
// document update. The stream reconnects after drops until canceled.
func (c *Client) Subscribe(ctx context.Context, fn func(*domain.RemoteDocument)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	subID := id.MustGenerate("rsub")

	go func() {
		for {
			if err := c.streamOnce(ctx, fn); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("remote subscription dropped", "sub_id", subID, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	c.logger.Debug("remote subscription started", "sub_id", subID)
	return cancel, nil
}

// streamOnce holds one SSE connection open and decodes data frames until the
// stream ends.
func (c *Client) streamOnce(ctx context.Context, fn func(*domain.RemoteDocument)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+subscribePath, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build subscribe request")
	}
	req.Header.Set("Accept", "text/event-stream")

	// A dedicated client without the read timeout: the stream stays open
	// indefinitely.
	stream := &http.Client{Transport: c.client.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeRemoteUnavailable, "open event stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.RemoteUnavailablef("event stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentBytes)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var doc domain.RemoteDocument
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			c.logger.Warn("skipping malformed event payload", "error", err)
			continue
		}
		fn(&doc)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, errors.CodeRemoteUnavailable, "read event stream")
	}
	return nil
}
