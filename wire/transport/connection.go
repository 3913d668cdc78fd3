package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/fentonlabs/daxc/signer"
	"github.com/fentonlabs/daxc/wire/cbe"
	"github.com/fentonlabs/daxc/wire/common"
	"github.com/fentonlabs/daxc/wire/proto"
)

var Logger = logger.GetLogger("transport")

const (
	// handshakeMagic opens every connection, before any application frame.
	handshakeMagic = "J7yne5G"

	// authInterval is the freshness window of the authorization frame.
	authInterval = 300 * time.Second

	// readChunkSize is how much is pulled off the socket per read while
	// buffering a reply.
	readChunkSize = 1024
)

// Options carries the per-connection knobs the pool passes down.
type Options struct {
	ConnectTimeout           time.Duration
	RequestTimeout           time.Duration
	IdleTimeout              time.Duration
	SkipHostnameVerification bool
	Signer                   signer.Signer
	UserAgent                string
}

// Connection is one socket to one cluster node. It serves one request at a
// time; the mutex spans the full write/read exchange including any
// authorization frame emitted right before it, so no other caller can
// slip a request in between.
type Connection struct {
	id       uint64
	endpoint Endpoint
	opts     Options

	mu   sync.Mutex
	conn net.Conn

	sessionID    string
	createdAt    time.Time
	lastAuth     time.Time // zero until first authorization
	lastActivity atomic.Int64
	requestCount atomic.Uint64

	inUse  atomic.Bool
	broken atomic.Bool
	closed atomic.Bool
}

// Dial opens, upgrades and handshakes a connection to the endpoint.
func Dial(ep Endpoint, opts Options) (*Connection, error) {
	d := net.Dialer{Timeout: opts.ConnectTimeout}
	raw, err := d.Dial("tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", common.ErrConnection, ep.Addr(), err)
	}

	conn := raw
	if ep.TLS {
		tlsConn := tls.Client(raw, &tls.Config{
			ServerName:         ep.Host,
			InsecureSkipVerify: opts.SkipHostnameVerification,
		})
		if opts.ConnectTimeout > 0 {
			raw.SetDeadline(time.Now().Add(opts.ConnectTimeout))
		}
		if err := tlsConn.Handshake(); err != nil {
			raw.Close()
			return nil, fmt.Errorf("%w: tls handshake with %s: %v", common.ErrConnection, ep.Addr(), err)
		}
		raw.SetDeadline(time.Time{})
		conn = tlsConn
	}

	c := &Connection{
		endpoint:  ep,
		opts:      opts,
		conn:      conn,
		sessionID: newSessionID(),
		createdAt: time.Now(),
	}
	c.touch()

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	Logger.Debugf("connected to %s (session %s)", ep.Addr(), c.sessionID)
	return c, nil
}

// newSessionID builds the per-connection session identifier: milliseconds
// since the epoch scaled by 1000 plus a random component.
func newSessionID() string {
	return strconv.FormatInt(time.Now().UnixMilli()*1000+rand.Int63n(1000), 10)
}

// handshake emits the five opening frames. No acknowledgement is read.
func (c *Connection) handshake() error {
	buf := cbe.AppendValue(nil, cbe.Text(handshakeMagic))
	buf = cbe.AppendValue(buf, cbe.Uint(0)) // layering marker
	buf = cbe.AppendValue(buf, cbe.Text(c.sessionID))
	buf = cbe.AppendValue(buf, cbe.Map(cbe.Pair{Key: cbe.Text("UserAgent"), Val: cbe.Text(c.opts.UserAgent)}))
	buf = cbe.AppendValue(buf, cbe.Uint(0)) // client mode

	if err := c.writeAll(buf); err != nil {
		return err
	}
	return nil
}

// Invoke sends one framed request and returns the raw reply bytes, two
// complete top-level values as delimited by the codec. An authorization
// frame is interleaved first whenever the freshness window has lapsed.
func (c *Connection) Invoke(req []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, common.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.maybeAuthorize(); err != nil {
		return nil, err
	}

	if err := c.writeAll(req); err != nil {
		return nil, err
	}
	reply, err := c.readReply()
	if err != nil {
		return nil, err
	}

	c.requestCount.Add(1)
	c.touch()
	return reply, nil
}

// maybeAuthorize emits the signed authorization frame when due: on the
// first application request of the connection and whenever 300 s have
// elapsed since the last one. The caller holds the connection mutex.
func (c *Connection) maybeAuthorize() error {
	if c.opts.Signer == nil {
		return nil
	}
	now := time.Now()
	if !c.lastAuth.IsZero() && now.Sub(c.lastAuth) < authInterval {
		return nil
	}

	mat, err := c.opts.Signer.Sign(context.Background(), now)
	if err != nil {
		c.broken.Store(true)
		return fmt.Errorf("%w: %v", common.ErrAuthFailed, err)
	}

	frame := proto.SerializeAuth(mat.AccessKeyID, mat.Signature, mat.StringToSign, mat.SessionToken, c.opts.UserAgent)
	if err := c.writeAll(frame); err != nil {
		return err
	}
	reply, err := c.readReply()
	if err != nil {
		return err
	}
	if _, err := proto.DecodeReply(reply); err != nil {
		c.broken.Store(true)
		var serr *common.ServerError
		if errors.As(err, &serr) {
			return fmt.Errorf("%w: server rejected authorization: %v", common.ErrAuthFailed, serr)
		}
		return err
	}

	c.lastAuth = now
	Logger.Debugf("authorized session %s on %s", c.sessionID, c.endpoint.Addr())
	return nil
}

// writeAll writes the buffer under the request deadline. Any failure marks
// the connection unhealthy, its wire state is undefined from here.
func (c *Connection) writeAll(buf []byte) error {
	if c.opts.RequestTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout))
	}
	if _, err := c.conn.Write(buf); err != nil {
		c.broken.Store(true)
		return c.ioError("write", err)
	}
	return nil
}

// readReply buffers chunked reads until the stream holds one complete
// reply: an error descriptor and a body, self-delimited by the codec.
func (c *Connection) readReply() ([]byte, error) {
	var buf []byte
	chunk := make([]byte, readChunkSize)

	for {
		if c.opts.RequestTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.opts.RequestTimeout))
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			done, derr := replyComplete(buf)
			if derr != nil {
				c.broken.Store(true)
				return nil, derr
			}
			if done {
				return buf, nil
			}
		}
		if err != nil {
			c.broken.Store(true)
			return nil, c.ioError("read", err)
		}
	}
}

// replyComplete reports whether buf holds at least two complete top-level
// values. Truncation means keep reading; anything else is corruption.
func replyComplete(buf []byte) (bool, error) {
	_, rest, err := cbe.Decode(buf)
	if err == nil {
		_, _, err = cbe.Decode(rest)
	}
	if err == nil {
		return true, nil
	}
	if errors.Is(err, cbe.ErrTruncated) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", common.ErrMalformedEncoding, err)
}

func (c *Connection) ioError(op string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %s on %s", common.ErrTimeout, op, c.endpoint.Addr())
	}
	if c.closed.Load() {
		return common.ErrClosed
	}
	return fmt.Errorf("%w: %s on %s: %v", common.ErrConnection, op, c.endpoint.Addr(), err)
}

// --------------------------------------------------------------------------
// Health and lifecycle
// --------------------------------------------------------------------------

// touch records activity for idleness tracking.
func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Healthy reports whether the connection can serve requests.
func (c *Connection) Healthy() bool {
	return !c.closed.Load() && !c.broken.Load()
}

// Idle reports whether the connection has been inactive beyond the idle
// threshold.
func (c *Connection) Idle() bool {
	if c.opts.IdleTimeout <= 0 {
		return false
	}
	last := time.Unix(0, c.lastActivity.Load())
	return time.Since(last) > c.opts.IdleTimeout
}

// Endpoint returns the endpoint this connection is bound to.
func (c *Connection) Endpoint() Endpoint { return c.endpoint }

// SessionID returns the handshake session identifier.
func (c *Connection) SessionID() string { return c.sessionID }

// RequestCount returns the number of completed application requests.
func (c *Connection) RequestCount() uint64 { return c.requestCount.Load() }

// tryAcquire claims the connection for one caller.
func (c *Connection) tryAcquire() bool {
	return c.inUse.CompareAndSwap(false, true)
}

// release returns the connection to the pool's free set.
func (c *Connection) release() {
	c.inUse.Store(false)
}

// markBroken flags the connection so the pool stops handing it out.
func (c *Connection) markBroken() {
	c.broken.Store(true)
}

// Close shuts the socket. It is idempotent.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
