// Package analytics turns state machine results into lifecycle events and
// hands them to sinks.
package analytics
