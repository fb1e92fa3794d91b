// Package loader turns external triggers (push events, deep links,
// programmatic calls) into started experiences.
//
// Requests that arrive while the host has no active UI surface are queued and
// replayed in arrival order once a surface becomes active.
package loader
