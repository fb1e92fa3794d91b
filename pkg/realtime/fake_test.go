package realtime_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/aretw0/waypoint/pkg/realtime"
)

// fakeServer is an in-memory peer speaking the channel protocol.
type fakeServer struct {
	mu sync.Mutex

	// joinStatus is the status replied to joins ("" = never reply).
	joinStatus string
	joinReason string
	// ackHeartbeats replies to heartbeats; wrongHeartbeatRef corrupts the ref.
	ackHeartbeats     bool
	wrongHeartbeatRef bool

	urls   []string
	frames []realtime.Message
	conns  []*fakeConn
}

func newFakeServer() *fakeServer {
	return &fakeServer{joinStatus: "ok", ackHeartbeats: true}
}

func (s *fakeServer) Dial(ctx context.Context, url string, header http.Header) (realtime.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := &fakeConn{server: s, in: make(chan []byte, 32), closed: make(chan struct{})}
	s.urls = append(s.urls, url)
	s.conns = append(s.conns, conn)
	return conn, nil
}

func (s *fakeServer) set(fn func(s *fakeServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeServer) received(event string) []realtime.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []realtime.Message
	for _, f := range s.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *fakeServer) lastConn() *fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func (s *fakeServer) handle(conn *fakeConn, msg realtime.Message) {
	s.mu.Lock()
	s.frames = append(s.frames, msg)
	joinStatus, joinReason := s.joinStatus, s.joinReason
	ack, wrong := s.ackHeartbeats, s.wrongHeartbeatRef
	s.mu.Unlock()

	switch msg.Event {
	case realtime.EventJoin:
		if joinStatus == "" {
			return
		}
		response := map[string]any{}
		if joinReason != "" {
			response["reason"] = joinReason
		}
		conn.push(realtime.Message{
			JoinRef: msg.JoinRef, Ref: msg.Ref, Topic: msg.Topic, Event: realtime.EventReply,
			Payload: map[string]any{"status": joinStatus, "response": response},
		})
	case realtime.EventHeartbeat:
		if !ack {
			return
		}
		ref := msg.Ref
		if wrong {
			ref = "999999"
		}
		conn.push(realtime.Message{
			Ref: ref, Topic: realtime.SystemTopic, Event: realtime.EventReply,
			Payload: map[string]any{"status": "ok", "response": map[string]any{}},
		})
	}
}

type fakeConn struct {
	server *fakeServer
	in     chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *fakeConn) push(msg realtime.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	select {
	case c.in <- data:
	case <-c.closed:
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	var msg realtime.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.server.handle(c, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
