package server

import (
	"sort"
)

// byTime orders locations by the time the finder saw the accessory.
type byTime []Location

func (b byTime) Len() int {
	return len(b)
}

func (b byTime) Less(i, j int) bool {
	if b[i].TagData.Time.Equal(b[j].TagData.Time) {
		return b[i].PublishedAt.Before(b[j].PublishedAt)
	}
	return b[i].TagData.Time.Before(b[j].TagData.Time)
}

func (b byTime) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
}

var _ sort.Interface = byTime{}
