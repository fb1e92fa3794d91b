// Package http holds the HTTP adapters: a content API experience source and
// a chi-routed debug server that inspects and drives a running SDK.
package http
