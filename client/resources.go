package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	v1 "botadmin/pkg/api/v1"
)

// getList fetches a collection that may or may not be paginated.
func getList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, err
	}
	return decodeList[T](resp.Body)
}

func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}
	var page v1.Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

func itemPath(collection string, id int64) string {
	return fmt.Sprintf("%s%d/", collection, id)
}
