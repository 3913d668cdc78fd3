package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fentonlabs/daxc/signer"
	"github.com/fentonlabs/daxc/wire/cbe"
	"github.com/fentonlabs/daxc/wire/common"
	"github.com/fentonlabs/daxc/wire/proto"
)

// --------------------------------------------------------------------------
// Fake cluster node
// --------------------------------------------------------------------------

// fakeNode is an in-process node speaking the wire protocol: it consumes
// the handshake, answers authorization frames, and routes application
// requests to a handler.
type fakeNode struct {
	ln         net.Listener
	handshakes chan []cbe.Value
	authCount  atomic.Int64
	handler    func(method uint64, params cbe.Value) []byte
}

func okReply() []byte {
	reply := cbe.Encode(cbe.Seq())
	return append(reply, cbe.Encode(cbe.Null())...)
}

func bodyReply(body cbe.Value) []byte {
	reply := cbe.Encode(cbe.Seq())
	return append(reply, cbe.Encode(body)...)
}

func startFakeNode(t *testing.T, handler func(method uint64, params cbe.Value) []byte) *fakeNode {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if handler == nil {
		handler = func(uint64, cbe.Value) []byte { return okReply() }
	}
	n := &fakeNode{ln: ln, handshakes: make(chan []cbe.Value, 16), handler: handler}
	go n.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return n
}

func (n *fakeNode) endpoint(t *testing.T) Endpoint {
	t.Helper()
	_, portStr, _ := net.SplitHostPort(n.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Endpoint{Host: "127.0.0.1", Port: port}
}

func (n *fakeNode) acceptLoop() {
	for {
		conn, err := n.ln.Accept()
		if err != nil {
			return
		}
		go n.serve(conn)
	}
}

func (n *fakeNode) serve(conn net.Conn) {
	defer conn.Close()
	var buf []byte

	hs, buf, err := readValues(conn, buf, 5)
	if err != nil {
		return
	}
	select {
	case n.handshakes <- hs:
	default:
	}

	for {
		head, rest, err := readValues(conn, buf, 2)
		if err != nil {
			return
		}
		buf = rest
		method := head[1].Uint

		if method == uint64(common.MethodAuthorizeConnection) {
			// access key, signature, string to sign, token, user agent
			if _, rest, err = readValues(conn, buf, 5); err != nil {
				return
			}
			buf = rest
			n.authCount.Add(1)
			if _, err := conn.Write(okReply()); err != nil {
				return
			}
			continue
		}

		params, rest, err := readValues(conn, buf, 1)
		if err != nil {
			return
		}
		buf = rest
		if _, err := conn.Write(n.handler(method, params[0])); err != nil {
			return
		}
	}
}

// readValues buffers socket reads until n complete top-level values are
// available.
func readValues(conn net.Conn, buf []byte, n int) ([]cbe.Value, []byte, error) {
	chunk := make([]byte, 1024)
	for {
		vals, rest, done := tryDecode(buf, n)
		if done {
			return vals, rest, nil
		}
		r, err := conn.Read(chunk)
		if r > 0 {
			buf = append(buf, chunk[:r]...)
		}
		if err != nil && r == 0 {
			return nil, nil, err
		}
	}
}

func tryDecode(buf []byte, n int) ([]cbe.Value, []byte, bool) {
	vals := make([]cbe.Value, 0, n)
	rest := buf
	for i := 0; i < n; i++ {
		v, r, err := cbe.Decode(rest)
		if err != nil {
			return nil, nil, false
		}
		vals = append(vals, v)
		rest = r
	}
	return vals, rest, true
}

// testSigner returns fixed material without touching real credentials.
type testSigner struct{}

func (testSigner) Sign(context.Context, time.Time) (signer.Material, error) {
	return signer.Material{
		AccessKeyID:  "AKID",
		Signature:    "00ff00ff",
		StringToSign: []byte("string-to-sign"),
	}, nil
}

func testOptions() Options {
	return Options{
		ConnectTimeout: time.Second,
		RequestTimeout: 2 * time.Second,
		UserAgent:      "daxc/test",
	}
}

// --------------------------------------------------------------------------
// Endpoint parsing
// --------------------------------------------------------------------------

// TestParseEndpoint tests scheme handling and default ports
func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw     string
		want    Endpoint
		wantErr bool
	}{
		{"dax://cluster.local", Endpoint{Host: "cluster.local", Port: 8111}, false},
		{"daxs://cluster.local", Endpoint{Host: "cluster.local", Port: 9111, TLS: true}, false},
		{"dax://cluster.local:7000", Endpoint{Host: "cluster.local", Port: 7000}, false},
		{"daxs://10.0.0.1:7443", Endpoint{Host: "10.0.0.1", Port: 7443, TLS: true}, false},
		{"http://cluster.local", Endpoint{}, true},
		{"dax://", Endpoint{}, true},
		{"dax://host:notaport", Endpoint{}, true},
	}
	for _, c := range cases {
		t.Run(c.raw, func(t *testing.T) {
			ep, err := ParseEndpoint(c.raw)
			if c.wantErr {
				if !errors.Is(err, common.ErrInvalidConfig) {
					t.Errorf("error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ep != c.want {
				t.Errorf("endpoint = %+v, want %+v", ep, c.want)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// TestHandshakeFrames tests the five opening frames
func TestHandshakeFrames(t *testing.T) {
	node := startFakeNode(t, nil)

	c, err := Dial(node.endpoint(t), testOptions())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	var hs []cbe.Value
	select {
	case hs = <-node.handshakes:
	case <-time.After(2 * time.Second):
		t.Fatal("handshake not received")
	}

	if hs[0].Kind != cbe.KindText || hs[0].Text != "J7yne5G" {
		t.Errorf("frame 0 = %+v, want magic text", hs[0])
	}
	if hs[1].Kind != cbe.KindUint || hs[1].Uint != 0 {
		t.Errorf("frame 1 = %+v, want uint 0", hs[1])
	}
	if hs[2].Kind != cbe.KindText || hs[2].Text != c.SessionID() {
		t.Errorf("frame 2 = %+v, want session id %s", hs[2], c.SessionID())
	}
	if _, err := strconv.ParseInt(c.SessionID(), 10, 64); err != nil {
		t.Errorf("session id %q is not numeric", c.SessionID())
	}
	ua, ok := hs[3].Lookup("UserAgent")
	if !ok || ua.Text != "daxc/test" {
		t.Errorf("frame 3 = %+v, want UserAgent mapping", hs[3])
	}
	if hs[4].Kind != cbe.KindUint || hs[4].Uint != 0 {
		t.Errorf("frame 4 = %+v, want uint 0", hs[4])
	}
}

// TestInvoke tests one request/reply exchange
func TestInvoke(t *testing.T) {
	node := startFakeNode(t, func(method uint64, params cbe.Value) []byte {
		if method != uint64(common.MethodGetItem) {
			return bodyReply(cbe.Text("wrong method"))
		}
		table, _ := params.Lookup("TableName")
		return bodyReply(cbe.Map(cbe.Pair{Key: cbe.Text("Echo"), Val: table}))
	})

	c, err := Dial(node.endpoint(t), testOptions())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	req := proto.Serialize(common.MethodGetItem, cbe.Map(
		cbe.Pair{Key: cbe.Text("TableName"), Val: cbe.Text("users")},
	))
	reply, err := c.Invoke(req)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	body, err := proto.DecodeReply(reply)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	echo, ok := body.Lookup("Echo")
	if !ok || echo.Text != "users" {
		t.Errorf("body = %+v", body)
	}

	if c.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", c.RequestCount())
	}
	if !c.Healthy() {
		t.Error("connection should be healthy after a clean exchange")
	}
}

// TestAuthCadence tests that the authorization frame is sent on first use
// and again only after the freshness window lapses
func TestAuthCadence(t *testing.T) {
	node := startFakeNode(t, nil)

	opts := testOptions()
	opts.Signer = testSigner{}
	c, err := Dial(node.endpoint(t), opts)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	req := proto.Serialize(common.MethodScan, cbe.Map(
		cbe.Pair{Key: cbe.Text("TableName"), Val: cbe.Text("t")},
	))

	// first application request carries the first authorization
	if _, err := c.Invoke(req); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got := node.authCount.Load(); got != 1 {
		t.Fatalf("auth frames after first request = %d, want 1", got)
	}

	// well inside the window: no new frame
	c.mu.Lock()
	c.lastAuth = time.Now().Add(-299 * time.Second)
	c.mu.Unlock()
	if _, err := c.Invoke(req); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got := node.authCount.Load(); got != 1 {
		t.Errorf("auth frames at 299s = %d, want still 1", got)
	}

	// past the window: one more frame
	c.mu.Lock()
	c.lastAuth = time.Now().Add(-301 * time.Second)
	c.mu.Unlock()
	if _, err := c.Invoke(req); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got := node.authCount.Load(); got != 2 {
		t.Errorf("auth frames at 301s = %d, want 2", got)
	}
}

// TestInvokeTimeout tests that a silent server yields ErrTimeout and a bad
// connection
func TestInvokeTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// swallow everything, never reply
			go func() {
				buf := make([]byte, 4096)
				for {
					if _, err := conn.Read(buf); err != nil {
						conn.Close()
						return
					}
				}
			}()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	opts := testOptions()
	opts.RequestTimeout = 50 * time.Millisecond
	c, err := Dial(Endpoint{Host: "127.0.0.1", Port: port}, opts)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	_, err = c.Invoke(proto.Serialize(common.MethodScan, cbe.Map()))
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if c.Healthy() {
		t.Error("connection should be bad after a timeout")
	}
}

// TestDialRefused tests connection errors at open
func TestDialRefused(t *testing.T) {
	// grab a port and close it again so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close()

	_, err = Dial(Endpoint{Host: "127.0.0.1", Port: port}, testOptions())
	if !errors.Is(err, common.ErrConnection) {
		t.Errorf("error = %v, want ErrConnection", err)
	}
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// TestPoolReuse tests that a released healthy connection is handed out
// again, earliest first
func TestPoolReuse(t *testing.T) {
	node := startFakeNode(t, nil)
	p := NewPool([]Endpoint{node.endpoint(t)}, testOptions(), 10)
	defer p.Close()

	c1, err := p.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	p.Put(c1)

	c2, err := p.Get()
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if c1 != c2 {
		t.Error("pool should reuse the released connection")
	}
	p.Put(c2)

	if got := p.ConnectionCount(node.endpoint(t)); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}
}

// TestPoolRoundRobin tests fan-out fairness across endpoints
func TestPoolRoundRobin(t *testing.T) {
	nodeA := startFakeNode(t, nil)
	nodeB := startFakeNode(t, nil)
	eps := []Endpoint{nodeA.endpoint(t), nodeB.endpoint(t)}

	p := NewPool(eps, testOptions(), 10)
	defer p.Close()

	// hold every connection so each Get dials a fresh one
	const k = 3
	var held []*Connection
	for i := 0; i < k*len(eps); i++ {
		c, err := p.Get()
		if err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
		held = append(held, c)
	}

	for _, ep := range eps {
		if got := p.ConnectionCount(ep); got != k {
			t.Errorf("ConnectionCount(%s) = %d, want %d", ep.Addr(), got, k)
		}
	}
	for _, c := range held {
		p.Put(c)
	}
}

// TestPoolCap tests the per-host connection cap
func TestPoolCap(t *testing.T) {
	node := startFakeNode(t, nil)
	p := NewPool([]Endpoint{node.endpoint(t)}, testOptions(), 2)
	defer p.Close()

	c1, err := p.Get()
	if err != nil {
		t.Fatalf("Get 1 failed: %v", err)
	}
	c2, err := p.Get()
	if err != nil {
		t.Fatalf("Get 2 failed: %v", err)
	}

	if _, err := p.Get(); !errors.Is(err, common.ErrPoolExhausted) {
		t.Errorf("error = %v, want ErrPoolExhausted", err)
	}
	if got := p.ConnectionCount(node.endpoint(t)); got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}

	p.Put(c1)
	p.Put(c2)
}

// TestPoolMarkBad tests that a bad connection is quarantined and replaced
func TestPoolMarkBad(t *testing.T) {
	node := startFakeNode(t, nil)
	p := NewPool([]Endpoint{node.endpoint(t)}, testOptions(), 10)
	defer p.Close()

	c1, err := p.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	p.MarkBad(c1)

	c2, err := p.Get()
	if err != nil {
		t.Fatalf("Get after MarkBad failed: %v", err)
	}
	if c1 == c2 {
		t.Error("a connection flagged bad must not be handed out")
	}
	p.Put(c2)
}

// TestPoolErrors tests the no-endpoint and closed failure modes
func TestPoolErrors(t *testing.T) {
	p := NewPool(nil, testOptions(), 10)
	if _, err := p.Get(); !errors.Is(err, common.ErrNoEndpoints) {
		t.Errorf("error = %v, want ErrNoEndpoints", err)
	}

	node := startFakeNode(t, nil)
	p = NewPool([]Endpoint{node.endpoint(t)}, testOptions(), 10)
	c, err := p.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	p.Put(c)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close should be idempotent: %v", err)
	}
	if _, err := p.Get(); !errors.Is(err, common.ErrPoolClosed) {
		t.Errorf("error = %v, want ErrPoolClosed", err)
	}
	if _, err := c.Invoke([]byte{0x01}); !errors.Is(err, common.ErrClosed) {
		t.Errorf("Invoke on closed connection: error = %v, want ErrClosed", err)
	}
}
