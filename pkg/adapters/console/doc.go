// Package console renders experiences as text on a terminal or any
// io.Writer. It is the container factory used by the waypoint CLI and by
// headless integration runs.
package console
