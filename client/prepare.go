package client

import (
	"context"
	"fmt"

	"github.com/fentonlabs/daxc/cache"
	"github.com/fentonlabs/daxc/wire/common"
)

// prepare validates an operation's parameters before anything is encoded.
// Validation failures surface directly and leave no side effect on any
// connection.
func (c *Client) prepare(ctx context.Context, op string, params map[string]any) error {
	switch op {
	case "GetItem", "DeleteItem", "UpdateItem":
		table, err := requireTable(params)
		if err != nil {
			return err
		}
		if key, ok := keyMap(params["Key"]); ok {
			if schema, ok := c.schemaFor(ctx, table); ok {
				return validateKey(key, schema)
			}
		}
		return nil

	case "PutItem":
		table, err := requireTable(params)
		if err != nil {
			return err
		}
		item, ok := keyMap(params["Item"])
		if !ok {
			return fmt.Errorf("%w: Item", common.ErrMissingRequiredField)
		}
		if schema, ok := c.schemaFor(ctx, table); ok {
			// validate the key projection only when the item carries every
			// key attribute; otherwise the operation proceeds unvalidated
			projection := make(map[string]any)
			for _, name := range schema.KeyNames() {
				v, present := item[name]
				if !present {
					return nil
				}
				projection[name] = v
			}
			return validateKey(projection, schema)
		}
		return nil

	case "BatchGetItem":
		items, ok := keyMap(params["RequestItems"])
		if !ok {
			return fmt.Errorf("%w: RequestItems", common.ErrMissingRequiredField)
		}
		for table, spec := range items {
			tableSpec, ok := keyMap(spec)
			if !ok {
				continue
			}
			schema, haveSchema := c.schemaFor(ctx, table)
			if !haveSchema {
				continue
			}
			keys, _ := tableSpec["Keys"].([]any)
			for _, k := range keys {
				if key, ok := keyMap(k); ok {
					if err := validateKey(key, schema); err != nil {
						return err
					}
				}
			}
		}
		return nil

	case "BatchWriteItem":
		items, ok := keyMap(params["RequestItems"])
		if !ok {
			return fmt.Errorf("%w: RequestItems", common.ErrMissingRequiredField)
		}
		for table, writes := range items {
			writeList, _ := writes.([]any)
			schema, haveSchema := c.schemaFor(ctx, table)
			if !haveSchema {
				continue
			}
			for _, w := range writeList {
				wm, ok := keyMap(w)
				if !ok {
					continue
				}
				if err := validateWriteRequest(wm, schema); err != nil {
					return err
				}
			}
		}
		return nil

	case "Query", "Scan":
		_, err := requireTable(params)
		return err

	case "DescribeTable", "DefineKeySchema", "DefineAttributeList", "DefineAttributeListId":
		return nil

	default:
		return fmt.Errorf("%w: %s", common.ErrUnsupportedOperation, op)
	}
}

func validateWriteRequest(w map[string]any, schema cache.KeySchema) error {
	if put, ok := keyMap(w["PutRequest"]); ok {
		if item, ok := keyMap(put["Item"]); ok {
			projection := make(map[string]any)
			for _, name := range schema.KeyNames() {
				v, present := item[name]
				if !present {
					return nil
				}
				projection[name] = v
			}
			return validateKey(projection, schema)
		}
	}
	if del, ok := keyMap(w["DeleteRequest"]); ok {
		if key, ok := keyMap(del["Key"]); ok {
			return validateKey(key, schema)
		}
	}
	return nil
}

// validateKey checks set equality between the request key attributes and
// the schema's key names.
func validateKey(key map[string]any, schema cache.KeySchema) error {
	names := schema.KeyNames()
	for _, name := range names {
		if _, ok := key[name]; !ok {
			return common.MissingKey(name)
		}
	}
	if len(key) > len(names) {
		allowed := make(map[string]bool, len(names))
		for _, name := range names {
			allowed[name] = true
		}
		for attr := range key {
			if !allowed[attr] {
				return common.ExtraKey(attr)
			}
		}
	}
	return nil
}

func requireTable(params map[string]any) (string, error) {
	table, ok := params["TableName"].(string)
	if !ok || table == "" {
		return "", fmt.Errorf("%w: TableName", common.ErrMissingRequiredField)
	}
	return table, nil
}

func keyMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}
