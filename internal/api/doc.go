// Package api implements the HTTP handlers for the curation service:
// token issuance and the asynchronous conversion task endpoints. All
// handlers respond with JSON and map internal errors onto sanitized
// status codes and messages.
package api
