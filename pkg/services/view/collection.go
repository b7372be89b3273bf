// Package view holds the render-ready shapes shared by the page controllers.
package view

import "github.com/de-tools/secboard/pkg/store/query"

// Collection is a fetched list as a page shows it.
type Collection[T any] struct {
	Loaded       bool
	Loading      bool
	Refreshing   bool
	Err          string
	Items        []T
	EmptyMessage string
}

// Empty is true only once the list is known to have no items.
func (c Collection[T]) Empty() bool {
	return c.Loaded && len(c.Items) == 0
}

func FromState[T any](s query.State, emptyMessage string) Collection[T] {
	c := Collection[T]{
		Loading:      s.Loading(),
		Refreshing:   s.HasData() && s.Fetching,
		EmptyMessage: emptyMessage,
	}
	if s.Err != nil {
		c.Err = s.Err.Error()
	}
	if items, ok := query.Data[[]T](s); ok {
		c.Loaded = true
		c.Items = items
	}
	return c
}

// Map converts the items of a collection, keeping its status.
func Map[T, U any](c Collection[T], fn func([]T) []U) Collection[U] {
	res := Collection[U]{
		Loaded:       c.Loaded,
		Loading:      c.Loading,
		Refreshing:   c.Refreshing,
		Err:          c.Err,
		EmptyMessage: c.EmptyMessage,
	}
	if c.Loaded {
		res.Items = fn(c.Items)
	}
	return res
}

// Observe subscribes onChange to every key. On error nothing stays subscribed.
func Observe(cache *query.Cache, keys []query.Key, onChange func()) ([]func(), error) {
	unsubs := make([]func(), 0, len(keys)+1)
	for _, key := range keys {
		unsub, err := cache.Subscribe(key, func(query.State) { onChange() })
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return unsubs, nil
}
