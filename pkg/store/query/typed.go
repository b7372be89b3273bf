package query

import (
	"context"
	"fmt"
)

// Data returns the state's data as T, or false when there is none yet.
func Data[T any](s State) (T, bool) {
	var zero T
	if !s.HasData() {
		return zero, false
	}
	v, ok := s.Data.(T)
	return v, ok
}

func FetchAs[T any](ctx context.Context, c *Cache, key Key) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %q holds %T, not %T", key, v, zero)
	}
	return typed, nil
}
