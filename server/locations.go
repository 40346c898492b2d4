package server

import (
	"time"

	"github.com/denysvitali/haystack-go/report"
	"github.com/denysvitali/haystack-go/server/responses"
)

type Location struct {
	PublishedAt time.Time       `json:"publishedAt"`
	KeyType     string          `json:"keyType"`
	TagData     report.Location `json:"tagData"`
}

type refreshResponse struct {
	responses.Refresh
	TagData []Location `json:"tag_data"`
}
