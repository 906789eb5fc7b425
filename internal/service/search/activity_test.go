package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/testutil"
)

func newFakeES(t *testing.T, h http.HandlerFunc) *ActivityIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &ActivityIndex{ES: client, Index: "activity_logs"}
}

func TestActivityIndex_Put(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	idx := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	entry := &models.ActivityLog{ID: 15, Role: "admin", Action: models.ActionDelete, Table: testutil.Ptr("news")}
	require.NoError(t, idx.Publish(context.Background(), entry))

	assert.Equal(t, "/activity_logs/_doc/15", gotPath)
	assert.Equal(t, "delete", gotBody["action"])
	assert.Equal(t, "news", gotBody["table_name"])
}

func TestActivityIndex_Search(t *testing.T) {
	idx := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/activity_logs/_search"))
		b, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(b), `"query":"monthly_reports"`)
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[
			{"_source":{"id":1,"action":"update","table_name":"monthly_reports"}},
			{"_source":{"id":2,"action":"delete","table_name":"monthly_reports"}}]}}`))
	})

	total, rows, err := idx.Search(context.Background(), "monthly_reports", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, models.ActionUpdate, rows[0].Action)
	assert.Equal(t, "monthly_reports", *rows[1].Table)
}

func TestActivityIndex_SearchError(t *testing.T) {
	idx := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"parse failure"}`))
	})

	_, _, err := idx.Search(context.Background(), "x", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse failure")
}

func TestActivityIndex_EnsureIndexExisting(t *testing.T) {
	var methods []string
	idx := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Equal(t, []string{http.MethodHead}, methods)
}
