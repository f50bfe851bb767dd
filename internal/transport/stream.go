package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	streamPath         = "/stream"
	maxStreamLineBytes = 1 << 20

	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// Stream opens the server push channel and returns a channel of raw JSON
// payloads, one per delivered message. The payload channel is closed when
// the connection drops or ctx ends; reconnecting is the caller's business
// (see Tail). Keepalive comments and non-data frames are filtered out here.
func (c *Client) Stream(ctx context.Context) (<-chan json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+streamPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a request timeout that would cut a long-lived
	// stream short, so the stream uses the bare transport.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: collapseDetail(resp.StatusCode, raw)}
	}

	out := make(chan json.RawMessage)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
		defer stop()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), maxStreamLineBytes)
		for scanner.Scan() {
			payload, ok := payloadFromLine(scanner.Text())
			if !ok {
				continue
			}
			select {
			case out <- json.RawMessage(payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// payloadFromLine extracts the JSON payload from one stream line. Both SSE
// "data:" frames and bare newline-delimited JSON objects are accepted;
// comments, keepalives and other SSE fields carry no payload.
func payloadFromLine(line string) ([]byte, bool) {
	line = strings.TrimRight(line, "\r")
	switch {
	case line == "" || strings.HasPrefix(line, ":"):
		return nil, false
	case strings.HasPrefix(line, "data:"):
		data := strings.TrimSpace(line[len("data:"):])
		if data == "" {
			return nil, false
		}
		return []byte(data), true
	case strings.HasPrefix(line, "{"):
		return []byte(line), true
	default:
		// event:/id:/retry: and anything else without a payload.
		return nil, false
	}
}

// Tail forwards push payloads to out until ctx ends, reconnecting with
// capped exponential backoff whenever the stream drops. Messages that were
// emitted while disconnected are lost; the reconciler compensates only
// through the invalidation-driven refetch paths. Tail closes out on return.
func (c *Client) Tail(ctx context.Context, out chan<- json.RawMessage) {
	defer close(out)

	backoff := reconnectBase
	for {
		msgs, err := c.Stream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("stream connect failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}

		backoff = reconnectBase
		for msg := range msgs {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		c.logger.Info("stream disconnected, reconnecting")
	}
}
