// Package server exposes pageaudit over HTTP.
//
// Routes:
//
//	POST   /api/audits            audit one URL and store the record
//	GET    /api/audits            list records (?limit=&url=)
//	GET    /api/audits/:id        fetch one record
//	DELETE /api/audits/:id        delete one record
//	GET    /api/stats             summarize recent records (?limit=&url=)
//	GET    /api/compare           compare the latest two audits of ?url=
//	POST   /api/batch             start a batch audit
//	GET    /api/batch             current batch snapshot
//	GET    /api/batch/events      server-sent snapshots of the current batch
//	POST   /api/batch/cancel      request cooperative cancellation
//	POST   /api/batch/reset       discard a finished batch
//	GET    /healthz               liveness probe
//
// Every response body is JSON; errors use {"error": "..."} with optional
// "stage" and "reason" fields describing where an audit failed.
package server
