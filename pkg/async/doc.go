// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, and error logging for best-effort work that outlives a request.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, logger, 5*time.Second, "session save", func(ctx context.Context) error {
//		return sessions.Save(ctx, sess)
//	})
//
// The task context is detached from the request's cancellation but carries its
// own timeout, so fire-and-forget writes complete even when the client goes
// away, without leaking goroutines.
//
// # Related Packages
//
//   - pkg/observability: Structured logging for task failures
package async
