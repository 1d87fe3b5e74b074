// Package stats summarizes stored audit history.
//
// Every function here is pure: it works on a snapshot of records and
// needs no synchronization.
package stats
