// Package viewer serves the captured API logs over a small JSON HTTP API,
// for a browser or TUI viewer to render.
//
// Routes:
//
//	GET    /status                  capture flag and counts
//	PUT    /status                  {"enabled": bool}
//	GET    /logs                    summaries; ?filter=expr&url=glob&limit=n
//	DELETE /logs                    clear all entries
//	GET    /logs/stream             WebSocket; a StreamMessage on every change
//	GET    /logs/{id}               full entry
//	GET    /logs/{id}/curl          replayable curl command (text/plain)
//	GET    /logs/{id}/timeline      attempt timeline
//	GET    /logs/{id}/extract       JSONPath query; ?path=$.response.data
//	GET    /export                  ?format=json|har
//
// Errors use the body {"error": code, "message": text}.
package viewer
