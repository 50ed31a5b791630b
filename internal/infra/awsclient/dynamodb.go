package awsclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// MaxBatchWriteItems is the per-request item limit of BatchWriteItem.
const MaxBatchWriteItems = 25

// AttributeValue covers the scalar attribute types the registry tables use.
type AttributeValue struct {
	S    *string `json:"S,omitempty"`
	N    *string `json:"N,omitempty"`
	BOOL *bool   `json:"BOOL,omitempty"`
	NULL *bool   `json:"NULL,omitempty"`
}

func String(v string) AttributeValue {
	return AttributeValue{S: &v}
}

func Number(v int64) AttributeValue {
	s := strconv.FormatInt(v, 10)
	return AttributeValue{N: &s}
}

// Text renders any scalar for display.
func (a AttributeValue) Text() string {
	switch {
	case a.S != nil:
		return *a.S
	case a.N != nil:
		return *a.N
	case a.BOOL != nil:
		return strconv.FormatBool(*a.BOOL)
	default:
		return "null"
	}
}

type Item map[string]AttributeValue

func (it Item) Str(name string) (string, error) {
	v, ok := it[name]
	if !ok || v.S == nil {
		return "", fmt.Errorf("attribute %q is not a string", name)
	}
	return *v.S, nil
}

func (it Item) Int64(name string) (int64, error) {
	v, ok := it[name]
	if !ok || v.N == nil {
		return 0, fmt.Errorf("attribute %q is not a number", name)
	}
	return strconv.ParseInt(*v.N, 10, 64)
}

type PutRequest struct {
	Item Item `json:"Item"`
}

type WriteRequest struct {
	PutRequest *PutRequest `json:"PutRequest,omitempty"`
}

// BatchWriteItem puts up to MaxBatchWriteItems items and returns the
// requests DynamoDB left unprocessed, keyed by table.
func (c *Client) BatchWriteItem(ctx context.Context, requests map[string][]WriteRequest) (map[string][]WriteRequest, error) {
	total := 0
	for _, reqs := range requests {
		total += len(reqs)
	}
	if total == 0 {
		return nil, nil
	}
	if total > MaxBatchWriteItems {
		return nil, fmt.Errorf("batch of %d items exceeds limit of %d", total, MaxBatchWriteItems)
	}
	var resp struct {
		UnprocessedItems map[string][]WriteRequest `json:"UnprocessedItems"`
	}
	if err := c.do(ctx, "BatchWriteItem", map[string]any{"RequestItems": requests}, &resp); err != nil {
		return nil, err
	}
	return resp.UnprocessedItems, nil
}

// GetItem returns a nil item when the key does not exist.
func (c *Client) GetItem(ctx context.Context, table string, key Item) (Item, error) {
	if table == "" {
		return nil, errors.New("table name is required")
	}
	var resp struct {
		Item Item `json:"Item"`
	}
	err := c.do(ctx, "GetItem", map[string]any{
		"TableName":      table,
		"Key":            key,
		"ConsistentRead": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Item, nil
}

type QueryInput struct {
	TableName                 string            `json:"TableName"`
	KeyConditionExpression    string            `json:"KeyConditionExpression"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues Item              `json:"ExpressionAttributeValues,omitempty"`
	ExclusiveStartKey         Item              `json:"ExclusiveStartKey,omitempty"`
}

type ScanInput struct {
	TableName         string `json:"TableName"`
	ExclusiveStartKey Item   `json:"ExclusiveStartKey,omitempty"`
}

type Page struct {
	Items            []Item `json:"Items"`
	LastEvaluatedKey Item   `json:"LastEvaluatedKey"`
}

func (c *Client) Query(ctx context.Context, in QueryInput) (Page, error) {
	if in.TableName == "" {
		return Page{}, errors.New("table name is required")
	}
	var page Page
	err := c.do(ctx, "Query", in, &page)
	return page, err
}

func (c *Client) Scan(ctx context.Context, in ScanInput) (Page, error) {
	if in.TableName == "" {
		return Page{}, errors.New("table name is required")
	}
	var page Page
	err := c.do(ctx, "Scan", in, &page)
	return page, err
}

// ScanAll follows LastEvaluatedKey until the table is exhausted.
func (c *Client) ScanAll(ctx context.Context, table string) ([]Item, error) {
	var (
		items []Item
		start Item
	)
	for {
		page, err := c.Scan(ctx, ScanInput{TableName: table, ExclusiveStartKey: start})
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if len(page.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = page.LastEvaluatedKey
	}
}

func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	var (
		names []string
		start string
	)
	for {
		payload := map[string]any{}
		if start != "" {
			payload["ExclusiveStartTableName"] = start
		}
		var resp struct {
			TableNames             []string `json:"TableNames"`
			LastEvaluatedTableName string   `json:"LastEvaluatedTableName"`
		}
		if err := c.do(ctx, "ListTables", payload, &resp); err != nil {
			return nil, err
		}
		names = append(names, resp.TableNames...)
		if resp.LastEvaluatedTableName == "" {
			return names, nil
		}
		start = resp.LastEvaluatedTableName
	}
}
