// Package ratelimit holds the process-wide politeness primitives shared
// by every NCBI client: a single token bucket and a rotating contact pool.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// New returns a token bucket replenishing requestsPerSecond tokens per
// second with capacity equal to the rate, so at most one full second of
// budget can be consumed in a burst. Exactly one limiter should exist per
// process; every remote call waits on it before issuing the request.
func New(requestsPerSecond int) *rate.Limiter {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
}

// EmailPool hands out contact addresses round-robin. Safe for concurrent
// use from many workers.
type EmailPool struct {
	mu     sync.Mutex
	emails []string
	next   int
}

func NewEmailPool(emails []string) *EmailPool {
	cp := make([]string, len(emails))
	copy(cp, emails)
	return &EmailPool{emails: cp}
}

// Next returns the next address in rotation, wrapping at the end of the
// pool. An empty pool yields "".
func (p *EmailPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.emails) == 0 {
		return ""
	}
	e := p.emails[p.next]
	p.next = (p.next + 1) % len(p.emails)
	return e
}

func (p *EmailPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.emails)
}
