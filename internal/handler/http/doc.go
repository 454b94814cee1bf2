// Package http implements the local HTTP API the fishing-log UI talks to.
//
// It exposes route wiring, request handlers and middleware. Request tracing,
// access logging, rate limiting and token checks run in this package before
// requests reach the sync core in the service layer.
package http
