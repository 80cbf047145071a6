// Package ctxwatch lets gaussconn cancel a blocking socket read/write by
// forcing a net.Conn deadline the instant a caller's context.Context is
// canceled, since net.Conn itself has no context-aware API.
package ctxwatch

import (
	"context"
	"sync/atomic"
)

// ContextWatcher watches one context at a time and runs a callback the
// moment it's canceled. gaussconn.Connector keeps one alive for the
// duration of the dial/TLS handshake and swaps in a fresh one per call that
// needs cancellation (Execute, Cancel, Keepalive).
type ContextWatcher struct {
	onCancel             func()
	onUnwatchAfterCancel func()

	watchInProgress uint32
	watchChan       chan context.Context
	unwatchChan     chan struct{}
}

// NewContextWatcher returns a ContextWatcher. onCancel runs when a watched
// context is canceled -- gaussconn uses it to force conn.SetDeadline into
// the past so the in-flight Read/Write unblocks with a timeout error.
// onUnwatchAfterCancel runs afterward, once Unwatch is called, and clears
// that deadline again.
func NewContextWatcher(onCancel func(), onUnwatchAfterCancel func()) *ContextWatcher {
	return &ContextWatcher{
		onCancel:             onCancel,
		onUnwatchAfterCancel: onUnwatchAfterCancel,
	}
}

func (cw *ContextWatcher) pump() {
	for ctx := range cw.watchChan {
		select {
		case <-ctx.Done():
			cw.onCancel()
			<-cw.watchChan
			cw.onUnwatchAfterCancel()
			cw.unwatchChan <- struct{}{}
		case <-cw.watchChan:
			cw.unwatchChan <- struct{}{}
		}
	}
}

// Watch starts watching ctx. If ctx is canceled before Unwatch, onCancel
// fires on a background goroutine.
func (cw *ContextWatcher) Watch(ctx context.Context) {
	if atomic.SwapUint32(&cw.watchInProgress, 1) != 0 {
		panic("ctxwatch: Watch called while a watch is already in progress")
	}
	if ctx.Done() == nil {
		// context.Background()/TODO() never cancels; no goroutine needed.
		atomic.StoreUint32(&cw.watchInProgress, 0)
		return
	}
	if cw.watchChan == nil {
		cw.watchChan = make(chan context.Context, 1)
		cw.unwatchChan = make(chan struct{}, 1)
		go cw.pump()
	}
	cw.watchChan <- ctx
}

// Unwatch stops watching the previously watched context. If onCancel had
// already fired, onUnwatchAfterCancel runs before Unwatch returns, so the
// caller can rely on the deadline being cleared again by the time it's back
// in control.
func (cw *ContextWatcher) Unwatch() {
	if atomic.SwapUint32(&cw.watchInProgress, 0) != 1 {
		return
	}
	cw.watchChan <- nil
	<-cw.unwatchChan
}

// Stop permanently shuts the watcher down; it must not be reused after this.
func (cw *ContextWatcher) Stop() {
	cw.Unwatch()
	if cw.watchChan != nil {
		close(cw.watchChan)
	}
}
