package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/waterworks/internal/models"
)

// ActivityIndex mirrors activity log entries into Elasticsearch for free-text
// search. The database stays the source of truth.
type ActivityIndex struct {
	ES    *elasticsearch.Client
	Index string
}

var activityMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":         map[string]string{"type": "long"},
			"user_id":    map[string]string{"type": "long"},
			"role":       map[string]string{"type": "keyword"},
			"action":     map[string]string{"type": "keyword"},
			"table_name": map[string]string{"type": "keyword"},
			"record_id":  map[string]string{"type": "long"},
			"ip_address": map[string]string{"type": "keyword"},
			"location":   map[string]string{"type": "text"},
			"user_agent": map[string]string{"type": "text"},
			"old_data":   map[string]interface{}{"type": "object", "enabled": false},
			"new_data":   map[string]interface{}{"type": "object", "enabled": false},
			"created_at": map[string]string{"type": "date"},
		},
	},
}

func responseError(op string, status string, body io.Reader) error {
	b, _ := io.ReadAll(body)
	return fmt.Errorf("search: %s failed: %s: %s", op, status, bytes.TrimSpace(b))
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (a *ActivityIndex) EnsureIndex(ctx context.Context) error {
	res, err := a.ES.Indices.Exists([]string{a.Index}, a.ES.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(activityMapping); err != nil {
		return err
	}
	res, err = a.ES.Indices.Create(a.Index, a.ES.Indices.Create.WithContext(ctx), a.ES.Indices.Create.WithBody(&buf))
	if err != nil {
		return fmt.Errorf("search: create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res.Status(), res.Body)
	}
	return nil
}

func (a *ActivityIndex) Put(ctx context.Context, entry *models.ActivityLog) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	res, err := a.ES.Index(a.Index, bytes.NewReader(body),
		a.ES.Index.WithContext(ctx),
		a.ES.Index.WithDocumentID(strconv.FormatUint(uint64(entry.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("search: index entry: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index entry", res.Status(), res.Body)
	}
	return nil
}

// Publish lets the index act as an audit sink.
func (a *ActivityIndex) Publish(ctx context.Context, entry *models.ActivityLog) error {
	return a.Put(ctx, entry)
}

func (a *ActivityIndex) Search(ctx context.Context, query string, from, size int) (int64, []models.ActivityLog, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"action^2", "table_name^2", "role", "location", "user_agent"},
				"fuzziness": "AUTO",
			},
		},
		"sort": []interface{}{map[string]string{"created_at": "desc"}},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := a.ES.Search(
		a.ES.Search.WithContext(ctx),
		a.ES.Search.WithIndex(a.Index),
		a.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res.Status(), res.Body)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.ActivityLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	out := make([]models.ActivityLog, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		out[i] = hit.Source
	}
	return r.Hits.Total.Value, out, nil
}
