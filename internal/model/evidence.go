package model

import "time"

// PhotoCategory tags a piece of photographic evidence.
type PhotoCategory string

// Warranty installation evidence.
const (
	PhotoGenerator PhotoCategory = "GENERATOR"
	PhotoCouplers  PhotoCategory = "COUPLERS"
	PhotoBody      PhotoCategory = "BODY"
)

// Annual inspection evidence; couplers reuse PhotoCouplers.
const (
	PhotoGeneratorRedLight    PhotoCategory = "GENERATOR_RED_LIGHT"
	PhotoCorrosionOrClearBody PhotoCategory = "CORROSION_OR_CLEAR_BODY"
)

// Photo references an uploaded image; upload itself happens elsewhere.
type Photo struct {
	Category   PhotoCategory
	URL        string
	UploadedAt time.Time
}

// CountByCategory tallies photos per category.
func CountByCategory(photos []Photo) map[PhotoCategory]int {
	out := make(map[PhotoCategory]int, len(photos))
	for _, p := range photos {
		out[p.Category]++
	}
	return out
}
