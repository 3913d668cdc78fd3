package client

import (
	"context"
	"fmt"

	"github.com/fentonlabs/daxc/cache"
	"github.com/fentonlabs/daxc/wire/common"
)

// schemaFor returns the key schema for a table, fetching it through a
// DescribeTable round-trip on a cache miss. Concurrent misses for one
// table collapse into a single fetch. Fetch failures are logged and the
// caller proceeds without validation.
func (c *Client) schemaFor(ctx context.Context, table string) (cache.KeySchema, bool) {
	if schema, ok := c.schemas.Get(table); ok {
		return schema, true
	}

	v, err, _ := c.sf.Do(table, func() (any, error) {
		return c.fetchSchema(ctx, table)
	})
	if err != nil {
		Logger.Warningf("describe table %s failed, request proceeds unvalidated: %v", table, err)
		return cache.KeySchema{}, false
	}
	return v.(cache.KeySchema), true
}

// fetchSchema runs DescribeTable and translates the reply into the cached
// schema shape. A key element without a resolvable attribute type defaults
// to text.
func (c *Client) fetchSchema(ctx context.Context, table string) (cache.KeySchema, error) {
	body, err := c.invoke(ctx, common.MethodDescribeTable, map[string]any{"TableName": table})
	if err != nil {
		return cache.KeySchema{}, err
	}

	reply, err := itemFromCBE(body)
	if err != nil {
		return cache.KeySchema{}, err
	}
	tbl, ok := reply["Table"].(map[string]any)
	if !ok {
		return cache.KeySchema{}, fmt.Errorf("%w: DescribeTable reply has no Table", common.ErrMalformedEncoding)
	}

	schema, err := schemaFromTable(tbl)
	if err != nil {
		return cache.KeySchema{}, err
	}
	if err := c.schemas.Put(table, schema); err != nil {
		return cache.KeySchema{}, err
	}
	return schema, nil
}

// schemaFromTable converts the reply's Table description into the
// hash/range element shape.
func schemaFromTable(tbl map[string]any) (cache.KeySchema, error) {
	keySchema, _ := tbl["KeySchema"].([]any)
	if len(keySchema) == 0 {
		return cache.KeySchema{}, fmt.Errorf("%w: DescribeTable reply has no KeySchema", common.ErrMalformedEncoding)
	}

	types := attributeTypes(tbl)

	var out cache.KeySchema
	for _, e := range keySchema {
		elem, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := elem["AttributeName"].(string)
		keyType, _ := elem["KeyType"].(string)

		attrType := types[name]
		if attrType == "" {
			attrType = "S"
		}
		ke := cache.KeyElement{AttributeName: name, AttributeType: attrType}

		if keyType == "RANGE" {
			r := ke
			out.Range = &r
		} else {
			out.Hash = ke
		}
	}
	if out.Hash.AttributeName == "" {
		return cache.KeySchema{}, fmt.Errorf("%w: DescribeTable reply has no hash key", common.ErrMalformedEncoding)
	}
	return out, nil
}

func attributeTypes(tbl map[string]any) map[string]string {
	out := make(map[string]string)
	defs, _ := tbl["AttributeDefinitions"].([]any)
	for _, d := range defs {
		def, ok := d.(map[string]any)
		if !ok {
			continue
		}
		name, _ := def["AttributeName"].(string)
		attrType, _ := def["AttributeType"].(string)
		if name != "" {
			out[name] = attrType
		}
	}
	return out
}
