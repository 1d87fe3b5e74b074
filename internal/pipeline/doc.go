// Package pipeline implements the single-page auditor.
//
// An audit runs an ordered list of steps over one URL: fetch, extract,
// score and persist. Each step reads and extends a shared State. The
// pipeline stops at the first failing step, and persisting is the last
// step, so a record is written only when every earlier step succeeded.
//
// Re-auditing a URL never looks at earlier records; each audit appends a
// fresh record so the store keeps a full history.
package pipeline
