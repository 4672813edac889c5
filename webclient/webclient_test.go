// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package webclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceReply struct {
	Price float64 `json:"price"`
}

func newGetFactory(url string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestFetchJson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"price": 101.5}`))
	}))
	defer srv.Close()

	var reply priceReply
	err := FetchJson(context.Background(), srv.Client(), NewRateLimiter(), newGetFactory(srv.URL), &reply)
	require.NoError(t, err)
	assert.Equal(t, 101.5, reply.Price)
}

func TestFetchJsonInvalidContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	var reply priceReply
	err := FetchJson(context.Background(), srv.Client(), NewRateLimiter(), newGetFactory(srv.URL), &reply)
	assert.Error(t, err)
}

func TestFetchJsonErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	var reply priceReply
	err := FetchJson(context.Background(), srv.Client(), NewRateLimiter(), newGetFactory(srv.URL), &reply)
	assert.ErrorContains(t, err, "403")
}

func TestRunRequestRetriesOnceOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price": 3}`))
	}))
	defer srv.Close()

	var reply priceReply
	err := FetchJson(context.Background(), srv.Client(), NewRateLimiter(), newGetFactory(srv.URL), &reply)
	require.NoError(t, err)
	assert.Equal(t, 3.0, reply.Price)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunRequestGivesUpAfterSecond429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := RunRequest(context.Background(), srv.Client(), NewRateLimiter(), newGetFactory(srv.URL))
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRateLimiterFromHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-limit", "5")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	l := NewRateLimiter()
	assert.Equal(t, int(^uint(0)>>1), l.Remaining())
	resp, err := RunRequest(context.Background(), srv.Client(), l, newGetFactory(srv.URL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 4, l.Remaining())
}

func TestManualRateLimiterBlocks(t *testing.T) {
	l := NewConfiguredRateLimiter(1)
	assert.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 0, l.Remaining())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// The interval only starts with the first response, so the limit is exhausted.
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}
