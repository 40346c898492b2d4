package haystack

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/model"
	"github.com/denysvitali/haystack-go/report"
)

type FindResult struct {
	Results []Report `json:"results"`
}

type Report struct {
	ID            string `json:"id"`
	DatePublished int64  `json:"datePublished"`
	Payload       string `json:"payload"`
	Description   string `json:"description"`
	StatusCode    int    `json:"statusCode"`
}

func (r Report) PublishedAt() time.Time {
	return time.UnixMilli(r.DatePublished).UTC()
}

func (r Report) Blob() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %w", report.ErrMalformedReport, err)
	}
	return b, nil
}

// Decoded is the outcome of decrypting one Report.
type Decoded struct {
	Report   Report
	SubKey   *model.SubKey
	Location *report.Location
	Err      error
}

func DecodeReport(r Report, key model.SubKey) (*report.Location, error) {
	blob, err := r.Blob()
	if err != nil {
		return nil, err
	}
	return report.DecryptBlob(blob, key.PrivateKey)
}

// DecodeReports decrypts reports concurrently using the sub keys returned by
// Client.Find. Reports without a matching sub key fail with report.ErrNoKey.
func DecodeReports(ctx context.Context, reports []Report, subKeys map[lookup.ID]model.SubKey, workers int) []Decoded {
	items := make([]report.Item, 0, len(reports))
	// positions[j] is the index in reports of items[j]
	positions := make([]int, 0, len(reports))
	out := make([]Decoded, len(reports))
	for i, r := range reports {
		out[i].Report = r
		id := lookup.ID(r.ID)
		var item report.Item
		item.ID = id
		if sk, ok := subKeys[id]; ok {
			sk := sk
			out[i].SubKey = &sk
			item.Key = &sk.PrivateKey
		}
		blob, err := r.Blob()
		if err != nil {
			logger.WithField("id", id.Short()).WithField("class", report.Classify(err)).Warnf("unable to decode report: %v", err)
			out[i].Err = err
			continue
		}
		item.Blob = blob
		items = append(items, item)
		positions = append(positions, i)
	}

	results := report.DecryptBatch(ctx, items, report.BatchOptions{Workers: workers})
	for _, res := range results {
		d := &out[positions[res.Index]]
		d.Location = res.Location
		d.Err = res.Err
	}
	return out
}
