// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package webclient

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Simple bucket rate limiter (client side) which optionally considers http headers.
// Vendors reset their windows at fixed intervals, which token buckets do not model well.
type RateLimiter struct {
	limitCounter uint64 // Use atomic accessor
	interval     int64  // Use atomic accessor
	startTime    int64  // Use atomic accessor
}

// Delay before the single retry after a 429 reply, also used as polling interval.
const MinWaitTime = time.Millisecond * 250

// Create a rate limiter to be initialized by http headers.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// Manually initialize rate limiter. The first response starts the interval.
func NewManualRateLimiter(interval time.Duration, limit uint32) *RateLimiter {
	return &RateLimiter{
		limitCounter: uint64(limit) << 32,
		interval:     int64(interval),
	}
}

// NewConfiguredRateLimiter limits to perSecond requests, or falls back to header based limits if perSecond is 0.
func NewConfiguredRateLimiter(perSecond int) *RateLimiter {
	if perSecond > 0 {
		return NewManualRateLimiter(time.Second, uint32(perSecond))
	}
	return NewRateLimiter()
}

func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		limitCounter := atomic.LoadUint64(&l.limitCounter)
		limit := limitCounter >> 32
		if limit == 0 {
			return nil // no limitation
		}
		counter := limitCounter & 0xffffffff

		interval := atomic.LoadInt64(&l.interval)
		startTime := atomic.LoadInt64(&l.startTime)
		if interval > 0 && startTime > 0 {
			endTime := time.UnixMilli(startTime).Add(time.Duration(interval))
			if time.Since(endTime) > 0 {
				if !atomic.CompareAndSwapInt64(&l.startTime, startTime, endTime.UnixMilli()) {
					continue
				}
				// Subtract instead of setting to zero, other callers may have counted meanwhile.
				atomic.AddUint64(&l.limitCounter, -counter)
				limitCounter -= counter
				counter = 0
			}
		}
		if counter < limit {
			if atomic.CompareAndSwapUint64(&l.limitCounter, limitCounter, limitCounter+1) {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(MinWaitTime):
		}
	}
}

// Return the remaining count or max int if not limited.
func (l *RateLimiter) Remaining() int {
	limitCounter := atomic.LoadUint64(&l.limitCounter)
	limit := limitCounter >> 32
	if limit == 0 {
		return math.MaxInt
	}
	counter := limitCounter & 0xffffffff
	return max(int(limit)-int(counter), 0)
}

// HandleResponseHeadersWithWait reports retry=true after waiting MinWaitTime if the server answered 429.
// Otherwise the limit is initialized from the x-ratelimit-* or ratelimit-* headers on first use.
func (l *RateLimiter) HandleResponseHeadersWithWait(ctx context.Context, resp *http.Response) (retry bool, err error) {
	if resp.StatusCode == http.StatusTooManyRequests {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(MinWaitTime):
			return true, nil
		}
	}
	if atomic.LoadUint64(&l.limitCounter) != 0 {
		l.HandleManualTimer()
		return false, nil
	}
	limit, err := strconv.ParseInt(resp.Header.Get("x-ratelimit-limit"), 10, 32)
	if err != nil {
		limit, err = strconv.ParseInt(resp.Header.Get("ratelimit-limit"), 10, 32)
	}
	if err != nil || limit <= 0 {
		return false, nil
	}
	interval := time.Minute
	if resetUnixTime, err := strconv.ParseInt(resp.Header.Get("x-ratelimit-reset"), 10, 64); err == nil && resetUnixTime > 0 {
		if diff := time.Until(time.Unix(resetUnixTime, 0)).Round(time.Second * 10); diff > 0 {
			interval = diff
		}
	} else if resetSeconds, err := strconv.ParseInt(resp.Header.Get("ratelimit-reset"), 10, 32); err == nil && resetSeconds > 0 {
		interval = time.Second * time.Duration(resetSeconds)
	}
	// This response already counts as first request.
	if atomic.CompareAndSwapUint64(&l.limitCounter, 0, (uint64(limit)<<32)|1) {
		atomic.CompareAndSwapInt64(&l.startTime, 0, time.Now().UnixMilli())
		atomic.StoreInt64(&l.interval, int64(interval))
	} else {
		atomic.AddUint64(&l.limitCounter, 1)
	}
	return false, nil
}

// HandleManualTimer starts the interval of a manual limiter with the first response.
func (l *RateLimiter) HandleManualTimer() {
	if atomic.LoadInt64(&l.interval) > 0 && atomic.LoadInt64(&l.startTime) == 0 {
		atomic.CompareAndSwapInt64(&l.startTime, 0, time.Now().UnixMilli())
	}
}
