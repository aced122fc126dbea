package goresource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SkipAndLimit_Execute(t *testing.T) {
	tests := []struct {
		name       string
		strategy   SkipAndLimit
		total      int
		params     PagedSearchParams
		wantOffset int
		wantLimit  int
		wantPages  PageData
	}{
		{
			name:       "single record",
			total:      1,
			params:     PagedSearchParams{Page: 1, PerPage: 1},
			wantOffset: 0,
			wantLimit:  1,
			wantPages:  PageData{Current: 1, CurrentCount: 1, MaxPerPage: 1, TotalPages: 1, TotalCount: 1},
		},
		{
			name:       "defaults to 25 per page",
			total:      30,
			params:     PagedSearchParams{},
			wantOffset: 0,
			wantLimit:  DefaultPerPage,
			wantPages:  PageData{Current: 1, CurrentCount: 25, MaxPerPage: 25, TotalPages: 2, TotalCount: 30},
		},
		{
			name:       "strategy per page used when params carry none",
			strategy:   SkipAndLimit{PerPage: 7},
			total:      10,
			params:     PagedSearchParams{Page: 2},
			wantOffset: 7,
			wantLimit:  7,
			wantPages:  PageData{Current: 2, CurrentCount: 3, MaxPerPage: 7, TotalPages: 2, TotalCount: 10},
		},
		{
			name:       "negative page is first page",
			total:      5,
			params:     PagedSearchParams{Page: -1, PerPage: 2},
			wantOffset: 0,
			wantLimit:  2,
			wantPages:  PageData{Current: 1, CurrentCount: 2, MaxPerPage: 2, TotalPages: 3, TotalCount: 5},
		},
		{
			name:       "no records",
			total:      0,
			params:     PagedSearchParams{Page: 2, PerPage: 50},
			wantOffset: 0,
			wantLimit:  50,
			wantPages:  PageData{Current: 1, CurrentCount: 0, MaxPerPage: 50, TotalPages: 0, TotalCount: 0},
		},
		{
			name:       "page zero",
			total:      25,
			params:     PagedSearchParams{Page: 0, PerPage: 10},
			wantOffset: 0,
			wantLimit:  10,
			wantPages:  PageData{Current: 1, CurrentCount: 10, MaxPerPage: 10, TotalPages: 3, TotalCount: 25},
		},
		{
			name:       "page beyond the end clamps to last",
			total:      25,
			params:     PagedSearchParams{Filters: Filter{"group": 2}, Page: 4, PerPage: 10},
			wantOffset: 20,
			wantLimit:  10,
			wantPages:  PageData{Current: 3, CurrentCount: 5, MaxPerPage: 10, TotalPages: 3, TotalCount: 25},
		},
		{
			name:       "more records than one page",
			total:      6,
			params:     PagedSearchParams{Page: 1, PerPage: 100},
			wantOffset: 0,
			wantLimit:  100,
			wantPages:  PageData{Current: 1, CurrentCount: 6, MaxPerPage: 100, TotalPages: 1, TotalCount: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &tStubModel{total: tt.total}

			res, err := tt.strategy.Execute(context.Background(), model, tt.params)
			require.NoError(t, err)

			require.Equal(t, tt.wantOffset, model.lastSearch.Offset)
			require.Equal(t, tt.wantLimit, model.lastSearch.Limit)
			require.Equal(t, tt.wantPages, res.Pages)
			require.Len(t, res.Data, tt.wantPages.CurrentCount)
			require.NotNil(t, model.lastCount.Filters, "filters must never be nil")
		})
	}
}

func Test_SkipAndLimit_Offsets(t *testing.T) {
	model := &tStubModel{total: 26}
	strategy := SkipAndLimit{}

	for page, wantOffset := range map[int]int{1: 0, 2: 10, 3: 20} {
		_, err := strategy.Execute(context.Background(), model, PagedSearchParams{Page: page, PerPage: 10})
		require.NoError(t, err)
		require.Equal(t, wantOffset, model.lastSearch.Offset, "page %d", page)
	}
}

func Test_SkipAndLimit_NeverPastTheEnd(t *testing.T) {
	strategy := SkipAndLimit{}

	for total := 1; total <= 40; total++ {
		for perPage := 1; perPage <= 12; perPage++ {
			for page := -2; page <= 45; page++ {
				model := &tStubModel{total: total}
				res, err := strategy.Execute(context.Background(), model, PagedSearchParams{Page: page, PerPage: perPage})
				require.NoError(t, err)

				if model.lastSearch.Offset >= total {
					t.Fatalf("total=%d perPage=%d page=%d: offset %d past the end", total, perPage, page, model.lastSearch.Offset)
				}
				if page <= 0 && model.lastSearch.Offset != 0 {
					t.Fatalf("total=%d perPage=%d page=%d: want first page", total, perPage, page)
				}
				if res.Pages.CurrentCount == 0 {
					t.Fatalf("total=%d perPage=%d page=%d: empty page", total, perPage, page)
				}
			}
		}
	}
}

func Test_SkipAndLimit_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := SkipAndLimit{}.Execute(context.Background(), &tStubModel{countErr: boom}, PagedSearchParams{})
	require.ErrorIs(t, err, boom)

	_, err = SkipAndLimit{}.Execute(context.Background(), &tStubModel{total: 3, searchErr: boom}, PagedSearchParams{})
	require.ErrorIs(t, err, boom)
}

func Test_PagedSearchParamsFrom(t *testing.T) {
	sort := Orderings{{Column: "balance", Direction: DirectionDESC}}
	fields := FieldSet{"name": true}

	got := PagedSearchParamsFrom(Object{
		QueryKeyFilters: map[string]any{"name": "x"},
		QueryKeyPage:    "3",
		QueryKeyPerPage: float64(15),
		QueryKeySort:    sort,
		QueryKeyFields:  fields,
	})
	require.Equal(t, PagedSearchParams{
		Filters: Filter{"name": "x"},
		Page:    3,
		PerPage: 15,
		Sort:    sort,
		Fields:  fields,
	}, got)

	got = PagedSearchParamsFrom(Object{QueryKeyPage: "abc"})
	require.Equal(t, PagedSearchParams{Filters: Filter{}, Page: 1}, got)
}
