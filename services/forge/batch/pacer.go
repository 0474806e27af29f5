// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package batch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer throttles the rate-limited sequential phase. Wait blocks
// until the next item may start or the context is cancelled.
//
// The abstraction exists so pacing is testable without real delays:
// production injects a token bucket, tests inject a recorder.
type Pacer interface {
	Wait(ctx context.Context) error
}

// ratePacer is a token bucket with burst 1: the first Wait returns
// immediately, each subsequent Wait is spaced by at least the
// configured interval.
type ratePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer returns a Pacer enforcing a minimum interval between
// consecutive Wait returns. A non-positive interval never blocks.
func NewRatePacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return nopPacer{}
	}
	return &ratePacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *ratePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// nopPacer never blocks.
type nopPacer struct{}

func (nopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}

var (
	_ Pacer = (*ratePacer)(nil)
	_ Pacer = nopPacer{}
)
