// Package http exposes the room booking API over JSON and a WebSocket event stream.
//
// Public routes cover self service account flows:
//   - POST /api/auth/register, /api/auth/verify-email, /api/auth/resend-verification
//   - POST /api/auth/login returns {"token","expires_at","user"}
//   - POST /api/auth/password-reset and /api/auth/password-reset/confirm
//
// Every other route requires an "Authorization: Bearer <token>" header. The
// WebSocket at GET /ws also accepts the token as a "token" query parameter.
//
// Dates travel as YYYY-MM-DD and wall clock times as HH:MM. Failures are
// rendered as {"error_code","message","errors","conflicts"} where errors maps
// field names to messages and conflicts lists overlapping bookings on 409.
//
// Request and response DTOs live alongside their handlers.
package http
