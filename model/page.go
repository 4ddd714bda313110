package model

import (
	"context"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/parser"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// PageFlag decides what CountSelect does with a page past the last one.
type PageFlag int

// Page flags.
const (
	// PageKeep returns the requested page even when it is empty.
	PageKeep PageFlag = iota

	// PageFirst falls back to the first page.
	PageFirst

	// PageLast falls back to the last page.
	PageLast
)

// Page defines one page of records with its pagination state.
type Page struct {
	Count       int      `json:"count"`
	TotalPages  int      `json:"totalPages"`
	PageSize    int      `json:"pagesize"`
	CurrentPage int      `json:"currentPage"`
	Data        []bson.M `json:"data"`
}

// CountSelect counts the matching records, then selects the requested page.
// Without a window the first page of the configured page size is used.
func (m *Model) CountSelect(ctx context.Context, flag PageFlag) (Page, error) {
	opts := m.take()

	counting := opts
	counting.Limit = nil
	counting.Order = nil
	counting.Group = nil

	count, err := m.db.Count(ctx, counting)
	if err != nil {
		return Page{}, err
	}

	return m.page(ctx, opts, count.Total, flag)
}

// CountSelectTotal selects the requested page using a known total instead of
// counting.
func (m *Model) CountSelectTotal(ctx context.Context, total int, flag PageFlag) (Page, error) {
	return m.page(ctx, m.take(), total, flag)
}

func (m *Model) page(ctx context.Context, opts mgoquery.QueryOptions, total int, flag PageFlag) (Page, error) {
	window := parser.ParseLimit(opts.Limit)
	if window.Count == 0 {
		window = mgoquery.Window{Offset: window.Offset, Count: m.pageSize}
	}

	page := Page{
		Count:       total,
		PageSize:    window.Count,
		CurrentPage: window.Offset/window.Count + 1,
		TotalPages:  (total + window.Count - 1) / window.Count,
		Data:        []bson.M{},
	}

	if page.CurrentPage > page.TotalPages {
		switch flag {
		case PageFirst:
			page.CurrentPage = 1
		case PageLast:
			page.CurrentPage = page.TotalPages
			if page.CurrentPage < 1 {
				page.CurrentPage = 1
			}
		}

		if flag != PageKeep {
			window.Offset = (page.CurrentPage - 1) * window.Count
		}
	}

	if total == 0 {
		return page, nil
	}

	opts.Limit = window

	data, err := m.selectWith(ctx, opts)
	if err != nil {
		return Page{}, err
	}

	page.Data = data
	return page, nil
}
