package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"go.uber.org/zap"
)

const (
	eventProfileUpdated = "profile_updated"
	maxRoleRetries      = 3
	reconnectMin        = time.Second
	reconnectMax        = 30 * time.Second
	// stableStream is how long a stream must stay open to count as healthy.
	stableStream = time.Minute
)

// backoff spaces out reconnects. A stream that stayed up or delivered a
// profile event starts the sequence over.
type backoff struct {
	delay time.Duration
}

func (b *backoff) next(ran time.Duration, handled int) time.Duration {
	if b.delay == 0 || ran >= stableStream || handled > 0 {
		b.delay = reconnectMin
	}
	d := b.delay
	b.delay = min(b.delay*2, reconnectMax)
	return d
}

// Watch follows changes to the caller's profile record until ctx is done.
// When a pushed role differs from the token's role it forces a refresh so
// the cached role catches up. Dropped streams are reopened with backoff.
func (s *Session) Watch(ctx context.Context) error {
	var b backoff
	for {
		opened := time.Now()
		handled, err := s.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		delay := b.next(time.Since(opened), handled)

		if KindOf(err) == KindUnauthenticated {
			if _, rerr := s.ForceRefresh(ctx); rerr != nil {
				return fmt.Errorf("event stream unauthenticated: %w", rerr)
			}
		} else {
			s.logger.Warn("event stream closed, reconnecting", zap.Duration("delay", delay), zap.Error(err))
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// stream reads one connection to the event endpoint and reports how many
// profile events it applied.
func (s *Session) stream(ctx context.Context) (int, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, "/users/me/events", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream is long-lived, so the client's request timeout must not apply.
	hc := *s.client.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, apiError(resp)
	}

	handled := 0
	err = readEvents(resp.Body, func(data string) {
		if s.handleEvent(ctx, data) {
			handled++
		}
	})
	return handled, err
}

type pushedEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Session) handleEvent(ctx context.Context, data string) bool {
	var ev pushedEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil || ev.Type != eventProfileUpdated {
		return false
	}
	var profile dto.ProfileResponse
	if err := json.Unmarshal(ev.Data, &profile); err != nil {
		s.logger.Warn("malformed profile event", zap.Error(err))
		return false
	}

	s.observe(profile)
	for i := 0; i < maxRoleRetries && s.Stale(); i++ {
		if _, err := s.ForceRefresh(ctx); err != nil {
			s.logger.Warn("role refresh after profile change failed", zap.Error(err))
			break
		}
	}
	return true
}

// readEvents calls fn with the data of every event on r until r ends.
func readEvents(r io.Reader, fn func(data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("event stream ended")
}
