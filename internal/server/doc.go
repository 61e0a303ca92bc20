// Package server exposes the pool assembler over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] added first sees the request first: request ids are assigned before panics are recovered and
// responses are logged.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
//
// # Endpoints
//
//   - GET /health
//   - GET /api/sources?q= : parsed source descriptor
//   - POST /api/pool {sourceQuery, size}
//   - POST /api/resolve {tracks, size, fillQuery}
//
// Errors are JSON [ErrorResponse] bodies. Rate limiting maps to 429 with a Retry-After header, bad input to 400.
package server
