package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpserter struct {
	products []Product
	failIDs  map[int64]bool
}

func (f *fakeUpserter) Upsert(_ context.Context, p Product) error {
	if f.failIDs[p.ID] {
		return errors.New("constraint violation")
	}
	f.products = append(f.products, p)
	return nil
}

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchDecodesFeed(t *testing.T) {
	srv := feedServer(t, `{"products":[
		{"id":1,"name":"Brown eggs","description":"Raw organic brown eggs","price":28.1,"weight":400,"in_stock":true,"image":"0.jpg"},
		{"id":2,"name":"Sweet fresh stawberry","description":"Sweet fresh stawberry","price":29.45,"weight":299,"in_stock":false,"image":"1.jpg"}
	]}`)

	products, err := NewFeed(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Brown eggs", products[0].Name)
	assert.Equal(t, 400, products[0].Weight)
	assert.False(t, products[1].InStock)
}

func TestFetchStripsNULBytes(t *testing.T) {
	srv := feedServer(t, `{"products":[
		{"id":1,"name":"Brown`+"\x00"+` eggs","description":"Raw`+"\x00"+`organic","price":28.1,"weight":400,"in_stock":true,"image":"0.jpg"}
	]}`)

	products, err := NewFeed(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Brown eggs", products[0].Name)
	assert.Equal(t, "Raworganic", products[0].Description)
}

func TestFetchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := NewFeed(srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}

func TestLoadSkipsFailedEntries(t *testing.T) {
	srv := feedServer(t, `{"products":[
		{"id":1,"name":"Brown eggs","price":28.1,"weight":400,"in_stock":true},
		{"id":2,"name":"Sweet fresh stawberry","price":29.45,"weight":299,"in_stock":true},
		{"id":3,"name":"Asparagus","price":18.95,"weight":100,"in_stock":true}
	]}`)

	store := &fakeUpserter{failIDs: map[int64]bool{2: true}}
	count, err := NewFeed(srv.URL).Load(context.Background(), store)
	require.NoError(t, err)

	// One entry failed its upsert; the rest still loaded.
	assert.Equal(t, 2, count)
	require.Len(t, store.products, 2)
	assert.Equal(t, int64(1), store.products[0].ID)
	assert.Equal(t, int64(3), store.products[1].ID)
}

func TestLoadPropagatesFetchFailure(t *testing.T) {
	srv := feedServer(t, `not json`)

	_, err := NewFeed(srv.URL).Load(context.Background(), &fakeUpserter{})
	assert.Error(t, err)
}
