// Package http provides HTTP handlers and middleware for the meeting API.
//
// Authenticated endpoints expect a session token in the Authorization header
// ("Bearer <token>") or the session_token cookie:
//   - POST /auth/login, POST /auth/logout, POST /auth/refresh: session lifecycle.
//   - GET|POST /users, PUT|DELETE /users/{id}: administrator user management.
//   - GET|POST /rooms, PUT|DELETE /rooms/{id}: room catalog. Listing is open to
//     every authenticated principal, mutations require an administrator.
//   - GET /rooms/{id}/meetings?date=YYYY-MM-DD: the room calendar for one day.
//   - POST /meetings, GET|PUT|DELETE /meetings/{id}: meeting records.
//   - POST /meetings/{id}/schedule|start|complete|cancel, PUT /meetings/{id}/status:
//     lifecycle transitions.
//   - GET /meetings/{id}/attendance: the attendance sheet.
//   - POST|GET|DELETE /meetings/{id}/checkin-token: check-in token management.
//
// Public endpoints:
//   - POST /checkin {"token","last4Digits"}: rate limited self check-in. Always
//     200 with {"outcome","participantName"} except 422 for malformed digits and
//     429 when the client is throttled.
//   - GET /healthz, GET /metrics.
//
// Dates are YYYY-MM-DD, times of day HH:MM (seconds accepted), timestamps RFC3339.
// Request and response DTOs live alongside their handlers.
package http
