package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/user/catalog-chat/internal/gateway"
	"github.com/user/catalog-chat/internal/store"
)

// fakeSender replays canned results and counts calls.
type fakeSender struct {
	lastReq *gateway.Request
	result  *gateway.Result
	err     error
	calls   int
}

func (f *fakeSender) Send(ctx context.Context, req *gateway.Request) (*gateway.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestListTables(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body: []byte(`{"tables": [
				{"name": "orders", "table_type": "MANAGED", "comment": "Order facts"},
				{"name": "customers", "table_type": ""}
			]}`),
		},
	}
	c := NewClient(sender, "https://workspace.example.com", nil, time.Minute)

	tables, err := c.ListTables(context.Background(), "main", "demo_sales")

	assert.NoError(t, err)
	assert.Equal(t, []TableSummary{
		{Name: "orders", TableType: "MANAGED", Comment: "Order facts"},
		{Name: "customers", TableType: "UNKNOWN"},
	}, tables)

	assert.Equal(t, "list_tables", sender.lastReq.Op)
	assert.Equal(t, http.MethodGet, sender.lastReq.Method)
	assert.Contains(t, sender.lastReq.URL, "/api/2.1/unity-catalog/tables?")
	assert.Contains(t, sender.lastReq.URL, "catalog_name=main")
	assert.Contains(t, sender.lastReq.URL, "schema_name=demo_sales")
}

func TestListTables_CacheHitSkipsBackend(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body:   []byte(`{"tables": [{"name": "orders", "table_type": "MANAGED"}]}`),
		},
	}
	cache := store.NewMockMetadataCache()
	c := NewClient(sender, "https://workspace.example.com", cache, time.Minute)

	first, err := c.ListTables(context.Background(), "main", "demo_sales")
	assert.NoError(t, err)

	second, err := c.ListTables(context.Background(), "main", "demo_sales")
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, sender.calls)
}

func TestListTables_CacheErrorFallsThrough(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body:   []byte(`{"tables": []}`),
		},
	}
	cache := store.NewMockMetadataCache()
	cache.Err = assert.AnError
	c := NewClient(sender, "https://workspace.example.com", cache, time.Minute)

	tables, err := c.ListTables(context.Background(), "main", "demo_sales")

	assert.NoError(t, err)
	assert.Empty(t, tables)
	assert.Equal(t, 1, sender.calls)
}

func TestListTables_BackendFailureNotCached(t *testing.T) {
	sender := &fakeSender{err: &gateway.APIError{Status: 404, Code: "SCHEMA_DOES_NOT_EXIST", Message: "no such schema"}}
	cache := store.NewMockMetadataCache()
	c := NewClient(sender, "https://workspace.example.com", cache, time.Minute)

	_, err := c.ListTables(context.Background(), "main", "missing")

	var apiErr *gateway.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Empty(t, cache.Values)
}

func TestGetTable(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body: []byte(`{
				"full_name": "main.demo_sales.orders",
				"name": "orders",
				"catalog_name": "main",
				"schema_name": "demo_sales",
				"table_type": "MANAGED",
				"comment": "Order facts",
				"columns": [
					{"name": "order_id", "type_name": "BIGINT", "comment": "PK"},
					{"name": "status", "type_name": ""}
				]
			}`),
		},
	}
	c := NewClient(sender, "https://workspace.example.com", nil, time.Minute)

	info, err := c.GetTable(context.Background(), "main", "demo_sales", "orders")

	assert.NoError(t, err)
	assert.Equal(t, "main.demo_sales.orders", info.FullName)
	assert.Equal(t, "MANAGED", info.TableType)
	assert.Len(t, info.Columns, 2)
	assert.Equal(t, "BIGINT", info.Columns[0].TypeName)
	assert.Equal(t, "UNKNOWN", info.Columns[1].TypeName)

	assert.Equal(t, "get_table", sender.lastReq.Op)
	assert.Contains(t, sender.lastReq.URL, "/api/2.1/unity-catalog/tables/main.demo_sales.orders")
}

func TestGetLineage(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body: []byte(`{
				"upstreams": [
					{"tableInfo": {"catalog_name": "main", "schema_name": "raw", "name": "orders_raw"}},
					{"tableInfo": {}}
				],
				"downstreams": [
					{"tableInfo": {"catalog_name": "main", "schema_name": "gold", "name": "orders_daily"}}
				]
			}`),
		},
	}
	c := NewClient(sender, "https://workspace.example.com", nil, time.Minute)

	lineage, err := c.GetLineage(context.Background(), "main", "demo_sales", "orders")

	assert.NoError(t, err)
	assert.Len(t, lineage.Upstreams, 1)
	assert.Equal(t, "main.raw.orders_raw", lineage.Upstreams[0].FullName())
	assert.Len(t, lineage.Downstreams, 1)
	assert.Equal(t, "main.gold.orders_daily", lineage.Downstreams[0].FullName())

	assert.Equal(t, "get_lineage", sender.lastReq.Op)
	assert.Contains(t, sender.lastReq.URL, "/api/2.0/lineage-tracking/table-lineage?")
	assert.Contains(t, sender.lastReq.URL, "table_name=main.demo_sales.orders")
}
