// Package crawler implements the career-page orchestration engine: robots
// policy resolution, retry and pause control, quota gating, and the
// sequential per-company run loop.
package crawler
