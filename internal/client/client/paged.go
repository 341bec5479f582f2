package client

import "context"

// Paged is a list response that may continue on another page.
type Paged interface {
	HasNext() bool
	Cursor() string
}

// GetAllPaged calls fetch with an empty cursor, then with each returned
// cursor, until a page reports no successor. Pages are returned in order.
func GetAllPaged[P Paged](ctx context.Context, fetch func(ctx context.Context, cursor string) (P, error)) ([]P, error) {
	var pages []P
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		if !page.HasNext() {
			return pages, nil
		}
		cursor = page.Cursor()
	}
}
