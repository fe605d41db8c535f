package listing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type garment struct {
	Name     string
	Category string
	Price    int
}

var garments = []garment{
	{"Denim Jacket", "jackets", 45},
	{"Wool Coat", "coats", 89},
	{"Linen Shirt", "shirts", 25},
	{"Denim Shirt", "shirts", 30},
	{"Leather Jacket", "jackets", 120},
	{"Silk Scarf", "accessories", 18},
	{"Corduroy Pants", "pants", 40},
}

func garmentFields(g garment) []string {
	return []string{g.Name, g.Category}
}

func garmentFilter(g garment, key, value string) bool {
	if key == "category" {
		return g.Category == value
	}
	return true
}

func garmentLess(a, b garment, sortBy string) bool {
	if sortBy == "price" {
		return a.Price < b.Price
	}
	return a.Name < b.Name
}

func TestApplySearchIsSubsetOfSource(t *testing.T) {
	for _, term := range []string{"denim", "DENIM", "shirt", "zzz", ""} {
		page := Apply(garments, Query{Search: term, Page: 1, PageSize: 50}, garmentFields, garmentFilter, garmentLess)

		assert.LessOrEqual(t, len(page.Items), len(garments))
		for _, g := range page.Items {
			matched := strings.Contains(strings.ToLower(g.Name), strings.ToLower(term)) ||
				strings.Contains(strings.ToLower(g.Category), strings.ToLower(term))
			assert.True(t, matched, "item %q must match search %q", g.Name, term)
		}
	}
}

func TestApplySearchIsCaseInsensitive(t *testing.T) {
	page := Apply(garments, Query{Search: "dEnIm", Page: 1, PageSize: 50}, garmentFields, garmentFilter, garmentLess)
	require.Len(t, page.Items, 2)
}

func TestApplyCategoricalFilter(t *testing.T) {
	page := Apply(garments, Query{
		Filters:  map[string]string{"category": "shirts"},
		Page:     1,
		PageSize: 50,
	}, garmentFields, garmentFilter, garmentLess)

	require.Len(t, page.Items, 2)
	for _, g := range page.Items {
		assert.Equal(t, "shirts", g.Category)
	}

	// "all" and "" leave the filter unset.
	for _, value := range []string{"all", ""} {
		page = Apply(garments, Query{
			Filters:  map[string]string{"category": value},
			Page:     1,
			PageSize: 50,
		}, garmentFields, garmentFilter, garmentLess)
		assert.Len(t, page.Items, len(garments))
	}
}

func TestApplySort(t *testing.T) {
	page := Apply(garments, Query{SortBy: "price", Page: 1, PageSize: 50}, garmentFields, garmentFilter, garmentLess)
	require.Len(t, page.Items, len(garments))
	for i := 1; i < len(page.Items); i++ {
		assert.LessOrEqual(t, page.Items[i-1].Price, page.Items[i].Price)
	}

	page = Apply(garments, Query{SortBy: "price", SortDesc: true, Page: 1, PageSize: 50}, garmentFields, garmentFilter, garmentLess)
	for i := 1; i < len(page.Items); i++ {
		assert.GreaterOrEqual(t, page.Items[i-1].Price, page.Items[i].Price)
	}
}

func TestApplyPagination(t *testing.T) {
	page := Apply(garments, Query{Page: 1, PageSize: 3}, garmentFields, garmentFilter, garmentLess)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 7, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)

	page = Apply(garments, Query{Page: 3, PageSize: 3}, garmentFields, garmentFilter, garmentLess)
	assert.Len(t, page.Items, 1)

	// Out-of-range pages clamp to the last page rather than going empty.
	page = Apply(garments, Query{Page: 99, PageSize: 3}, garmentFields, garmentFilter, garmentLess)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Items, 1)
}

func TestApplyEmptySource(t *testing.T) {
	page := Apply(nil, Query{Page: 1, PageSize: 5}, garmentFields, garmentFilter, garmentLess)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, page.Page)
}

func TestViewResetsPageOnFilterChange(t *testing.T) {
	view := NewView(3, garmentFields, garmentFilter, garmentLess)

	view.SetPage(3)
	assert.Equal(t, 3, view.Query().Page)

	view.SetSearch("shirt")
	assert.Equal(t, 1, view.Query().Page, "search change must reset to page 1")

	view.SetPage(2)
	view.SetFilter("category", "shirts")
	assert.Equal(t, 1, view.Query().Page, "filter change must reset to page 1")

	// Re-applying the same filter value keeps the page.
	view.SetPage(2)
	view.SetFilter("category", "shirts")
	assert.Equal(t, 2, view.Query().Page)

	view.SetSort("price", true)
	assert.Equal(t, 2, view.Query().Page, "sort change keeps the page")

	page := view.Compute(garments)
	for _, g := range page.Items {
		assert.Equal(t, "shirts", g.Category)
	}
}
