package report

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/lookup"
)

// Item is one report to decrypt. A nil Key means no key is known for the
// report's identifier.
type Item struct {
	ID   lookup.ID
	Blob []byte
	Key  *keys.PrivateKey
}

// Result is the outcome for the item at Index.
type Result struct {
	Index    int
	ID       lookup.ID
	Location *Location
	Err      error
}

// BatchOptions configures DecryptBatch.
type BatchOptions struct {
	// Workers bounds concurrent decryptions; zero means runtime.NumCPU().
	Workers int
}

// DecryptBatch decrypts items concurrently. A failing item never affects the
// others: every item gets its own Result, in input order. When ctx is done no
// further items are started and the remaining ones carry ctx.Err().
func DecryptBatch(ctx context.Context, items []Item, opts BatchOptions) []Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				results[j] = Result{Index: j, ID: items[j].ID, Err: err}
			}
			break
		}
		i := i
		g.Go(func() error {
			results[i] = decryptItem(i, items[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			logFailure(r)
		}
	}
	return results
}

func decryptItem(i int, item Item) Result {
	r := Result{Index: i, ID: item.ID}
	if item.Key == nil {
		r.Err = ErrNoKey
		return r
	}
	r.Location, r.Err = DecryptBlob(item.Blob, *item.Key)
	return r
}

func logFailure(r Result) {
	l := logger.WithField("id", r.ID.Short()).WithField("class", Classify(r.Err))
	switch {
	case errors.Is(r.Err, ErrAuthentication):
		l.Warnf("report rejected as untrusted: %v", r.Err)
	case errors.Is(r.Err, ErrNoKey):
		l.Debugf("no key for report")
	default:
		l.Warnf("unable to decrypt report: %v", r.Err)
	}
}

// Outcome classes returned by Classify.
const (
	ClassOK              = "ok"
	ClassNoKey           = "no_key"
	ClassMalformed       = "malformed"
	ClassInvalidPoint    = "invalid_point"
	ClassUnauthenticated = "unauthenticated"
	ClassCanceled        = "canceled"
	ClassError           = "error"
)

// Classify maps a decryption error to a stable label distinguishing missing
// data, invalid data and untrusted data.
func Classify(err error) string {
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, ErrNoKey):
		return ClassNoKey
	case errors.Is(err, ErrMalformedReport):
		return ClassMalformed
	case errors.Is(err, keys.ErrInvalidPoint):
		return ClassInvalidPoint
	case errors.Is(err, ErrAuthentication):
		return ClassUnauthenticated
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	default:
		return ClassError
	}
}

// Locations returns the successfully decrypted locations of results.
func Locations(results []Result) []Location {
	out := make([]Location, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Location != nil {
			out = append(out, *r.Location)
		}
	}
	return out
}
