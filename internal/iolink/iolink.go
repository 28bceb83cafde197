// Package iolink runs the external line-source reader: a goroutine
// that drains an input stream (serial port, socket, stdin) into the
// scheduler's per-tick input channel (§4.7, §5). This is the one place
// in this repo with more than one goroutine — everything else runs on
// the scheduler's single cooperative loop — so it is also the one
// place errgroup earns its keep, propagating a clean shutdown signal
// from either side.
package iolink

import (
	"bufio"
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// Reader feeds lines read from src into Lines until ctx is canceled or
// src returns an error/EOF.
type Reader struct {
	src   io.Reader
	Lines chan string
}

// NewReader wraps src; the caller owns src's lifetime (closing it, if
// closable, is what makes Run return on shutdown).
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, Lines: make(chan string)}
}

// Run is the reader loop: it blocks until ctx is canceled, the scanner
// hits EOF, or a read error occurs, and closes Lines on return. It is meant
// to be called as g.Go(func() error { return r.Run(ctx) }).
func (r *Reader) Run(ctx context.Context) error {
	defer close(r.Lines)
	scanner := bufio.NewScanner(r.src)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		select {
		case r.Lines <- scanner.Text():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// Group pairs one or more Readers under a shared errgroup so the
// scheduler can wait for all of them to unwind together on shutdown.
type Group struct {
	g       *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	readers []*Reader
}

// NewGroup creates a Group whose context is derived from parent.
func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	return &Group{g: g, ctx: gctx, cancel: cancel}
}

// Add registers a reader to run under this group's context.
func (grp *Group) Add(r *Reader) {
	grp.readers = append(grp.readers, r)
	grp.g.Go(func() error { return r.Run(grp.ctx) })
}

// Stop cancels every reader in the group.
func (grp *Group) Stop() { grp.cancel() }

// Wait blocks until every reader in the group has returned, propagating
// the first non-context-canceled error.
func (grp *Group) Wait() error {
	err := grp.g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
