// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ErrRateLimited = errors.New("rate limited")

// Creates a new request for every attempt, bodies cannot be replayed.
type RequestFactory func(ctx context.Context) (*http.Request, error)

func ParseJsonResponse(resp *http.Response, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("query returned error code %d (%s)", resp.StatusCode, b)
	}

	m, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || m != "application/json" {
		return fmt.Errorf("invalid content type %s", resp.Header.Get("Content-Type"))
	}

	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// RunRequest throttles, sends the request and handles rate limit replies.
// A 429 reply is retried exactly once after a short wait, a second one is reported as ErrRateLimited.
func RunRequest(ctx context.Context, client *http.Client, limiter *RateLimiter, newRequest RequestFactory) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		err := limiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
		req, err := newRequest(ctx)
		if err != nil {
			return nil, err
		}
		log.Debugf("requesting %s %s%s", req.Method, req.URL.Host, req.URL.Path)
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if attempt > 0 && resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, req.URL.Host)
		}
		retry, err := limiter.HandleResponseHeadersWithWait(ctx, resp)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if !retry {
			return resp, nil
		}
		resp.Body.Close()
	}
}

// FetchJson runs the request and decodes the json reply into v.
func FetchJson(ctx context.Context, client *http.Client, limiter *RateLimiter, newRequest RequestFactory, v any) error {
	resp, err := RunRequest(ctx, client, limiter, newRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return ParseJsonResponse(resp, v)
}
