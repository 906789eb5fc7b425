package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	cases := []struct {
		page, size string
		want       Page
		offset     int
	}{
		{"", "", Page{1, DefaultPageSize}, 0},
		{"3", "20", Page{3, 20}, 40},
		{"0", "500", Page{1, DefaultPageSize}, 0},
		{"x", "-1", Page{1, DefaultPageSize}, 0},
	}
	for _, tc := range cases {
		p := ParsePage(tc.page, tc.size)
		assert.Equal(t, tc.want, p, "page=%q size=%q", tc.page, tc.size)
		assert.Equal(t, tc.offset, p.Offset())
	}
}
