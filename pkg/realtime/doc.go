// Package realtime keeps a per-user push subscription alive over a websocket
// speaking the Phoenix channel protocol (v2 array frames).
//
// A Channel joins the topic "sdk:<account>:<user>", heartbeats on the
// "phoenix" system topic and reconnects after a fixed delay whenever the
// socket, the join or a heartbeat fails. Authentication failures are final.
//
// All session state lives on a single loop goroutine. Server events are
// handed to a Handler on a separate delivery goroutine.
package realtime
