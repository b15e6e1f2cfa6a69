// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON error responses, tolerant
// request parameter parsing, cache headers, and common HTTP middleware
// patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, data)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteForbidden(w, "not allowed to view these pages")
//
// Cache control:
//
//	httputil.SetNoCacheHeaders(w)
//
// # Request Parsing
//
// Path parameters:
//
//	id, err := httputil.ParsePathInt64(r, "groupId")
//
// Request parameters (query or form, tolerant of malformed values):
//
//	plid := httputil.ParamInt64(r, "p_l_id", 0)
//	private := httputil.ParamBool(r, "privateLayout", false)
//	locale := httputil.ParamString(r, "doAsUserLanguageId", "")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		observability.PanicRecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1024*1024),
//	)
//
// # Related Packages
//
//   - pkg/portal: The request pipeline built on these helpers
package httputil
