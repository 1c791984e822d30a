// Package http exposes the calendar surface and the public projection over
// HTTP.
//
// Unauthenticated endpoints:
//   - GET /healthz: readiness.
//   - GET /public/events?start=&end=: public local events as JSON. External
//     events never appear here.
//   - GET /public/calendar.ics?start=&end=: the same events as iCalendar.
//
// Endpoints under /api require `Authorization: Bearer actor:secret`:
//   - POST /api/views {"start","end"}: mounts a view and returns its merged
//     events and notices. GET and DELETE /api/views/{view} show and unmount it;
//     POST /api/views/{view}/reload refetches both sources.
//   - GET /api/views/{view}/notices drains pending notices.
//   - POST /api/views/{view}/selections: range selection, creates an event.
//   - POST /api/views/{view}/events/{key}/activate: opens the editor for a
//     local event or returns a read-only notice for an external one.
//   - PUT and DELETE /api/views/{view}/events/{key}: submit or delete from
//     the editor.
//   - POST /api/views/{view}/events/{key}/change: drag or resize. A rejected
//     change returns the restored event in the error body.
//
// Event keys are "origin:id". Times are RFC3339. Status codes: 422 validation,
// 409 read-only source, not draggable or mutation in flight, 404 unknown view
// or event, 410 invalidated view, 502 persistence failure, 401 missing or
// invalid token.
package http
