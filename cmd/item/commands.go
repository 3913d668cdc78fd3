package item

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// parseItem decodes a JSON attribute map from the command line, e.g.
// '{"id":{"S":"user-1"}}'.
func parseItem(arg string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arg), &m); err != nil {
		return nil, fmt.Errorf("argument must be a JSON attribute map: %w", err)
	}
	return m, nil
}

// printResult renders a reply map as indented JSON.
func printResult(m map[string]any) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", m)
		return
	}
	fmt.Println(string(out))
}

var (
	getCmd = &cobra.Command{
		Use:   "get [table] [key]",
		Short: "Reads one item by key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseItem(args[1])
			if err != nil {
				return err
			}
			resp, err := daxClient.GetItem(context.Background(), map[string]any{
				"TableName": args[0],
				"Key":       key,
			})
			if err != nil {
				return err
			}
			printResult(resp)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [table] [item]",
		Short: "Writes one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseItem(args[1])
			if err != nil {
				return err
			}
			resp, err := daxClient.PutItem(context.Background(), map[string]any{
				"TableName": args[0],
				"Item":      item,
			})
			if err != nil {
				return err
			}
			printResult(resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "delete [table] [key]",
		Short: "Deletes one item by key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseItem(args[1])
			if err != nil {
				return err
			}
			resp, err := daxClient.DeleteItem(context.Background(), map[string]any{
				"TableName": args[0],
				"Key":       key,
			})
			if err != nil {
				return err
			}
			printResult(resp)
			return nil
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [table] [params]",
		Short: "Runs a range query, params as a JSON parameter map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseItem(args[1])
			if err != nil {
				return err
			}
			params["TableName"] = args[0]
			resp, err := daxClient.Query(context.Background(), params)
			if err != nil {
				return err
			}
			printResult(resp)
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [table]",
		Short: "Runs a full-table scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := daxClient.Scan(context.Background(), map[string]any{
				"TableName": args[0],
			})
			if err != nil {
				return err
			}
			printResult(resp)
			return nil
		},
	}
	describeCmd = &cobra.Command{
		Use:   "describe [table]",
		Short: "Returns the table description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := daxClient.DescribeTable(context.Background(), map[string]any{
				"TableName": args[0],
			})
			if err != nil {
				return err
			}
			printResult(resp)
			return nil
		},
	}
)
