package prismacloud

import (
	"context"
	"encoding/json"
)

// Page is one ordered batch from a paged endpoint.
type Page struct {
	Offset  int
	Items   []json.RawMessage
	HasNext bool
}

// pageFetch issues the request for a single offset/limit window.
type pageFetch func(ctx context.Context, offset, limit int) (*Page, error)

// drainPages walks one pagination sequence from offset zero until the
// server signals the end. Stop conditions, in order: a page with zero items
// ends the sequence before it is delivered; after delivery, hasNext=false
// ends it; otherwise the offset advances by limit and the next request is
// issued. Requests within a sequence are strictly sequential, so offsets
// only ever increase and no window is fetched twice.
//
// A fetch error or a non-nil return from fn aborts the sequence; pages
// already delivered stay delivered.
func drainPages(ctx context.Context, limit int, fetch pageFetch, fn func(Page) error) error {
	for offset := 0; ; offset += limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := fetch(ctx, offset, limit)
		if err != nil {
			return err
		}
		page.Offset = offset
		if len(page.Items) == 0 {
			return nil
		}
		if err := fn(*page); err != nil {
			return err
		}
		if !page.HasNext {
			return nil
		}
	}
}
