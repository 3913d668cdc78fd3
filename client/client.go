package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/singleflight"

	"github.com/fentonlabs/daxc/cache"
	"github.com/fentonlabs/daxc/signer"
	"github.com/fentonlabs/daxc/wire/cbe"
	"github.com/fentonlabs/daxc/wire/common"
	"github.com/fentonlabs/daxc/wire/proto"
	"github.com/fentonlabs/daxc/wire/transport"
)

// Version of the client, reported in the handshake user agent.
const Version = "0.3.1"

var Logger = logger.GetLogger("client")

var (
	requestsTotal = metrics.GetOrCreateCounter("daxc_client_requests_total")
	requestErrors = metrics.GetOrCreateCounter("daxc_client_request_errors_total")
)

// CacheStats bundles the snapshots of both metadata caches.
type CacheStats struct {
	KeySchema     cache.Stats
	AttributeList cache.Stats
}

// Client is the accelerator client. It is safe for concurrent use; each
// operation borrows one pooled connection for the duration of its
// request/reply exchange.
type Client struct {
	config  common.ClientConfig
	pool    *transport.Pool
	schemas *cache.KeySchemaCache
	attrs   *cache.AttributeListCache
	sf      singleflight.Group
	closed  atomic.Bool
}

// New creates a client for the configured cluster. The signer is
// mandatory; connections authenticate with it on first use and every five
// minutes thereafter.
func New(cfg common.ClientConfig, s signer.Signer) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: no signer", common.ErrInvalidConfig)
	}
	common.InitLoggers(cfg.DebugLogging)

	endpoints, err := transport.ParseEndpoints(cfg.EndpointURLs())
	if err != nil {
		return nil, err
	}

	opts := transport.Options{
		ConnectTimeout:           cfg.ConnectTimeout,
		RequestTimeout:           cfg.RequestTimeout,
		IdleTimeout:              cfg.IdleTimeout,
		SkipHostnameVerification: cfg.SkipHostnameVerification,
		Signer:                   s,
		UserAgent:                fmt.Sprintf("daxc/%s (go; instance=%s)", Version, uuid.NewString()),
	}

	c := &Client{
		config:  cfg,
		pool:    transport.NewPool(endpoints, opts, cfg.MaxPendingConnectionsPerHost),
		schemas: cache.NewKeySchemaCache(cfg.KeyCacheSize, cfg.KeyCacheTTL),
		attrs:   cache.NewAttributeListCache(cfg.AttrCacheSize),
	}
	Logger.Debugf("client created: %s", cfg.String())
	return c, nil
}

// --------------------------------------------------------------------------
// Table operations
// --------------------------------------------------------------------------

// GetItem reads one item by key.
func (c *Client) GetItem(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "GetItem", params)
}

// PutItem writes one item.
func (c *Client) PutItem(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "PutItem", params)
}

// DeleteItem removes one item by key.
func (c *Client) DeleteItem(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "DeleteItem", params)
}

// UpdateItem applies an update expression to one item.
func (c *Client) UpdateItem(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "UpdateItem", params)
}

// BatchGetItem reads multiple items, possibly across tables.
func (c *Client) BatchGetItem(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "BatchGetItem", params)
}

// BatchWriteItem puts and deletes multiple items, possibly across tables.
func (c *Client) BatchWriteItem(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "BatchWriteItem", params)
}

// Query runs a range query against one table.
func (c *Client) Query(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "Query", params)
}

// Scan runs a full-table scan.
func (c *Client) Scan(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "Scan", params)
}

// DescribeTable returns the table description.
func (c *Client) DescribeTable(ctx context.Context, params map[string]any) (map[string]any, error) {
	return c.do(ctx, "DescribeTable", params)
}

// --------------------------------------------------------------------------
// Schema dialect operations
// --------------------------------------------------------------------------

// DefineKeySchema fetches a table's key schema through the dedicated
// dialect operation and caches it.
func (c *Client) DefineKeySchema(ctx context.Context, table string) (cache.KeySchema, error) {
	if c.closed.Load() {
		return cache.KeySchema{}, common.ErrClosed
	}
	body, err := c.invoke(ctx, common.MethodDefineKeySchema, map[string]any{"TableName": table})
	if err != nil {
		return cache.KeySchema{}, err
	}
	reply, err := itemFromCBE(body)
	if err != nil {
		return cache.KeySchema{}, err
	}
	schema, err := schemaFromElements(reply)
	if err != nil {
		return cache.KeySchema{}, err
	}
	if err := c.schemas.Put(table, schema); err != nil {
		return cache.KeySchema{}, err
	}
	return schema, nil
}

// DefineAttributeList resolves an agreed attribute-list id to its names,
// consulting the local cache first.
func (c *Client) DefineAttributeList(ctx context.Context, id uint64) ([]string, error) {
	if c.closed.Load() {
		return nil, common.ErrClosed
	}
	if names, ok := c.attrs.Get(id); ok {
		return names, nil
	}

	body, err := c.invokeValue(ctx, common.MethodDefineAttributeList, cbe.Uint(id))
	if err != nil {
		return nil, err
	}
	if body.Kind != cbe.KindSequence {
		return nil, fmt.Errorf("%w: attribute list body is %s, want sequence", common.ErrMalformedEncoding, body.Kind)
	}
	names := make([]string, 0, len(body.Seq))
	for _, e := range body.Seq {
		if e.Kind != cbe.KindText {
			return nil, fmt.Errorf("%w: attribute name is %s, want text", common.ErrMalformedEncoding, e.Kind)
		}
		names = append(names, e.Text)
	}
	c.attrs.PutByNames(names)
	return names, nil
}

// DefineAttributeListID agrees an id for an ordered attribute-name list
// with the server.
func (c *Client) DefineAttributeListID(ctx context.Context, names []string) (uint64, error) {
	if c.closed.Load() {
		return 0, common.ErrClosed
	}

	seq := make([]cbe.Value, len(names))
	for i, n := range names {
		seq[i] = cbe.Text(n)
	}
	body, err := c.invokeValue(ctx, common.MethodDefineAttributeListID, cbe.Value{Kind: cbe.KindSequence, Seq: seq})
	if err != nil {
		return 0, err
	}
	if body.Kind != cbe.KindUint {
		return 0, fmt.Errorf("%w: attribute list id body is %s, want uint", common.ErrMalformedEncoding, body.Kind)
	}
	c.attrs.PutByNames(names)
	return body.Uint, nil
}

// schemaFromElements parses the {HashKeyElement, RangeKeyElement?} reply
// shape, defaulting missing attribute types to text.
func schemaFromElements(reply map[string]any) (cache.KeySchema, error) {
	if tbl, ok := reply["Table"].(map[string]any); ok {
		return schemaFromTable(tbl)
	}

	parse := func(v any) (cache.KeyElement, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return cache.KeyElement{}, false
		}
		name, _ := m["AttributeName"].(string)
		if name == "" {
			return cache.KeyElement{}, false
		}
		attrType, _ := m["AttributeType"].(string)
		if attrType == "" {
			attrType = "S"
		}
		return cache.KeyElement{AttributeName: name, AttributeType: attrType}, true
	}

	var out cache.KeySchema
	hash, ok := parse(reply["HashKeyElement"])
	if !ok {
		return cache.KeySchema{}, fmt.Errorf("%w: reply has no HashKeyElement", common.ErrMalformedEncoding)
	}
	out.Hash = hash
	if r, ok := parse(reply["RangeKeyElement"]); ok {
		out.Range = &r
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Request path
// --------------------------------------------------------------------------

// do runs one named operation: prepare, encode, exchange, decode.
func (c *Client) do(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	if c.closed.Load() {
		return nil, common.ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method, err := common.MethodOf(op)
	if err != nil {
		return nil, err
	}
	if err := c.prepare(ctx, op, params); err != nil {
		return nil, err
	}

	body, err := c.invoke(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if body.IsNull() {
		return map[string]any{}, nil
	}
	return itemFromCBE(body)
}

// invoke encodes the parameter map and runs the exchange.
func (c *Client) invoke(ctx context.Context, method common.Method, params map[string]any) (cbe.Value, error) {
	v, err := toCBE(params)
	if err != nil {
		return cbe.Value{}, err
	}
	return c.invokeValue(ctx, method, v)
}

// invokeValue frames a request around an already-encoded parameter value,
// borrows a connection and decodes the reply. Transport and codec errors
// mark the connection bad and come back wrapped as ErrRequestFailed;
// server errors leave the connection healthy.
func (c *Client) invokeValue(ctx context.Context, method common.Method, params cbe.Value) (cbe.Value, error) {
	if err := ctx.Err(); err != nil {
		return cbe.Value{}, err
	}
	requestsTotal.Inc()

	req := proto.Serialize(method, params)

	conn, err := c.pool.Get()
	if err != nil {
		requestErrors.Inc()
		return cbe.Value{}, err
	}

	reply, err := conn.Invoke(req)
	if err != nil {
		c.pool.MarkBad(conn)
		requestErrors.Inc()
		return cbe.Value{}, fmt.Errorf("%w: %s: %w", common.ErrRequestFailed, method, err)
	}

	body, err := proto.DecodeReply(reply)
	if err != nil {
		var serr *common.ServerError
		if errors.As(err, &serr) {
			// the exchange itself was sound, keep the connection
			c.pool.Put(conn)
			requestErrors.Inc()
			return cbe.Value{}, serr
		}
		c.pool.MarkBad(conn)
		requestErrors.Inc()
		return cbe.Value{}, fmt.Errorf("%w: %s: %w", common.ErrRequestFailed, method, err)
	}

	c.pool.Put(conn)
	return body, nil
}

// --------------------------------------------------------------------------
// Introspection and teardown
// --------------------------------------------------------------------------

// CacheStats returns snapshots of both metadata caches.
func (c *Client) CacheStats() CacheStats {
	return CacheStats{
		KeySchema:     c.schemas.Stats(),
		AttributeList: c.attrs.Stats(),
	}
}

// InvalidateKeySchema drops a table's cached key schema.
func (c *Client) InvalidateKeySchema(table string) {
	c.schemas.Delete(table)
}

// Close shuts the pool and every connection it holds. Close is
// idempotent; operations after it fail with ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.pool.Close()
}
