package haystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/model"
)

type fakeService struct {
	t        *testing.T
	requests []FindRequest
	headers  []http.Header
	results  []Report
	status   int
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, http.MethodPost, r.Method)
	var req FindRequest
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.requests = append(f.requests, req)
	f.headers = append(f.headers, r.Header.Clone())
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	_ = json.NewEncoder(w).Encode(FindResult{Results: f.results})
}

func TestQuery(t *testing.T) {
	svc := &fakeService{t: t, results: []Report{{ID: "abc", DatePublished: 1700000000000, Payload: "AAAA"}}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	c := New(StaticCredentials{Username: "123", Token: "token"}, WithEndpoint(srv.URL))
	start := time.UnixMilli(1700000000000)
	ids := []lookup.ID{"b", "a"}
	res, err := c.Query(context.Background(), ids, start, 2*time.Hour)
	require.NoError(t, err)
	require.Equal(t, svc.results, res)

	require.Len(t, svc.requests, 1)
	search := svc.requests[0].Search
	require.Len(t, search, 1)
	assert.Equal(t, int64(1700000000000), search[0].StartDate)
	assert.Equal(t, int64(1700007200000), search[0].EndDate)
	assert.Equal(t, []string{"b", "a"}, search[0].Ids)

	user, pass, ok := (&http.Request{Header: svc.headers[0]}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "123", user)
	assert.Equal(t, "token", pass)
}

func TestQueryAuthorizationOverride(t *testing.T) {
	svc := &fakeService{t: t}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	c := New(nil, WithEndpoint(srv.URL), WithAuthorization("Bearer abc"))
	_, err := c.Query(context.Background(), []lookup.ID{"a"}, time.Now(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", svc.headers[0].Get("Authorization"))
}

func TestQueryErrors(t *testing.T) {
	svc := &fakeService{t: t, status: http.StatusUnauthorized}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	c := New(StaticCredentials{Username: "u", Token: "t"}, WithEndpoint(srv.URL))
	_, err := c.Query(context.Background(), []lookup.ID{"a"}, time.Now(), time.Hour)
	require.ErrorContains(t, err, "401")

	c = New(nil, WithEndpoint(srv.URL))
	_, err = c.Query(context.Background(), []lookup.ID{"a"}, time.Now(), time.Hour)
	require.ErrorIs(t, err, ErrMissingCredentials)

	res, err := c.Query(context.Background(), nil, time.Now(), time.Hour)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestFind(t *testing.T) {
	svc := &fakeService{t: t}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	priv, err := keys.GeneratePrivateKey(nil)
	require.NoError(t, err)
	static := NewStaticKey("static", priv)
	acc, err := GenerateAccessory("dyn", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	dynamic, err := NewDynamicKey(*acc)
	require.NoError(t, err)

	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	c := New(StaticCredentials{Username: "u", Token: "t"}, WithEndpoint(srv.URL))
	_, subKeys, err := c.Find(context.Background(), []model.MainKey{static, dynamic}, from, to)
	require.NoError(t, err)

	// one static key, five primary keys (the window boundary is inclusive)
	// and the secondary key of that day
	require.Len(t, subKeys, 1+5+1)
	require.Len(t, svc.requests[0].Search[0].Ids, len(subKeys))
	for id, sk := range subKeys {
		require.Equal(t, id, lookup.Identifier(sk.PublicKey))
	}
	sk := subKeys[lookup.Identifier(priv.PublicKey())]
	require.Equal(t, model.Static, sk.Type)
	require.Same(t, static, sk.MainKey)
}
