// Package httputil holds the JSON request/response plumbing shared by the
// API handlers: one error envelope, status-code shorthands, and body
// decoding that answers 400 on bad input so handlers can bail out early.
package httputil
