// Package extract visits page URLs through isolated browser sessions and
// captures their visible text or a full-page screenshot.
//
// A Pool runs a fixed number of workers over an in-memory queue. Each URL gets
// its own session, opened and closed within that URL's processing, and a
// failure on one URL is logged and counted without touching any other.
package extract
