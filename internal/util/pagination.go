package util

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a normalized page request: Number starts at 1 and Size is within
// (0, MaxPageSize].
type Page struct {
	Number int
	Size   int
}

// ParsePage reads page and size query values. Missing or malformed values
// fall back to the first page of DefaultPageSize.
func ParsePage(page, size string) Page {
	p := Page{Number: atoiDefault(page, 1), Size: atoiDefault(size, DefaultPageSize)}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 || p.Size > MaxPageSize {
		p.Size = DefaultPageSize
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
