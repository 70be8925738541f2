package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/catalog-chat/internal/gateway"
	"github.com/user/catalog-chat/internal/store"
)

type TableSummary struct {
	Name      string `json:"name"`
	TableType string `json:"table_type"`
	Comment   string `json:"comment"`
}

type ColumnInfo struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
	Comment  string `json:"comment"`
}

type TableInfo struct {
	FullName    string       `json:"full_name"`
	Name        string       `json:"name"`
	CatalogName string       `json:"catalog_name"`
	SchemaName  string       `json:"schema_name"`
	TableType   string       `json:"table_type"`
	Comment     string       `json:"comment"`
	Columns     []ColumnInfo `json:"columns"`
}

type TableRef struct {
	CatalogName string `json:"catalog_name"`
	SchemaName  string `json:"schema_name"`
	Name        string `json:"name"`
}

func (r TableRef) FullName() string {
	return fmt.Sprintf("%s.%s.%s", r.CatalogName, r.SchemaName, r.Name)
}

// TableLineage lists the tables feeding into and fed by one table.
type TableLineage struct {
	Upstreams   []TableRef `json:"upstreams"`
	Downstreams []TableRef `json:"downstreams"`
}

// Client queries the catalog metadata service. List and detail results are
// cached; an error from the cache only costs the round-trip it was saving.
type Client struct {
	sender   gateway.Sender
	host     string
	cache    store.MetadataCache
	cacheTTL time.Duration
}

func NewClient(sender gateway.Sender, host string, cache store.MetadataCache, cacheTTL time.Duration) *Client {
	return &Client{
		sender:   sender,
		host:     strings.TrimRight(host, "/"),
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// ListTables returns the tables in catalog.schema.
func (c *Client) ListTables(ctx context.Context, catalog, schema string) ([]TableSummary, error) {
	cacheKey := fmt.Sprintf("catalog:tables:%s.%s", catalog, schema)
	var cached []TableSummary
	if c.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	q := url.Values{}
	q.Set("catalog_name", catalog)
	q.Set("schema_name", schema)

	res, err := c.sender.Send(ctx, &gateway.Request{
		Op:     "list_tables",
		Method: http.MethodGet,
		URL:    c.host + "/api/2.1/unity-catalog/tables?" + q.Encode(),
	})
	if err != nil {
		return nil, err
	}

	var listing struct {
		Tables []TableInfo `json:"tables"`
	}
	if err := json.Unmarshal(res.Body, &listing); err != nil {
		return nil, &gateway.TransportError{Err: fmt.Errorf("malformed table listing: %w", err)}
	}

	summaries := make([]TableSummary, 0, len(listing.Tables))
	for _, t := range listing.Tables {
		tableType := t.TableType
		if tableType == "" {
			tableType = "UNKNOWN"
		}
		summaries = append(summaries, TableSummary{
			Name:      t.Name,
			TableType: tableType,
			Comment:   t.Comment,
		})
	}

	c.writeCache(ctx, cacheKey, summaries)
	return summaries, nil
}

// GetTable returns column-level details for catalog.schema.table.
func (c *Client) GetTable(ctx context.Context, catalog, schema, table string) (*TableInfo, error) {
	fullName := fmt.Sprintf("%s.%s.%s", catalog, schema, table)

	cacheKey := "catalog:table:" + fullName
	var cached TableInfo
	if c.readCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	res, err := c.sender.Send(ctx, &gateway.Request{
		Op:     "get_table",
		Method: http.MethodGet,
		URL:    c.host + "/api/2.1/unity-catalog/tables/" + url.PathEscape(fullName),
	})
	if err != nil {
		return nil, err
	}

	var info TableInfo
	if err := json.Unmarshal(res.Body, &info); err != nil {
		return nil, &gateway.TransportError{Err: fmt.Errorf("malformed table details: %w", err)}
	}
	if info.FullName == "" {
		info.FullName = fullName
	}
	if info.TableType == "" {
		info.TableType = "UNKNOWN"
	}
	for i := range info.Columns {
		if info.Columns[i].TypeName == "" {
			info.Columns[i].TypeName = "UNKNOWN"
		}
	}

	c.writeCache(ctx, cacheKey, &info)
	return &info, nil
}

// GetLineage returns the upstream and downstream tables of
// catalog.schema.table. Lineage is not cached: relationship edges move with
// pipeline runs, unlike table shapes.
func (c *Client) GetLineage(ctx context.Context, catalog, schema, table string) (*TableLineage, error) {
	fullName := fmt.Sprintf("%s.%s.%s", catalog, schema, table)

	q := url.Values{}
	q.Set("table_name", fullName)

	res, err := c.sender.Send(ctx, &gateway.Request{
		Op:     "get_lineage",
		Method: http.MethodGet,
		URL:    c.host + "/api/2.0/lineage-tracking/table-lineage?" + q.Encode(),
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Upstreams []struct {
			TableInfo TableRef `json:"tableInfo"`
		} `json:"upstreams"`
		Downstreams []struct {
			TableInfo TableRef `json:"tableInfo"`
		} `json:"downstreams"`
	}
	if err := json.Unmarshal(res.Body, &raw); err != nil {
		return nil, &gateway.TransportError{Err: fmt.Errorf("malformed lineage response: %w", err)}
	}

	lineage := &TableLineage{}
	for _, up := range raw.Upstreams {
		if up.TableInfo.Name != "" {
			lineage.Upstreams = append(lineage.Upstreams, up.TableInfo)
		}
	}
	for _, down := range raw.Downstreams {
		if down.TableInfo.Name != "" {
			lineage.Downstreams = append(lineage.Downstreams, down.TableInfo)
		}
	}
	return lineage, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	val, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Metadata cache read failed", "key", key, "error", err)
		return false
	}
	if val == nil {
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		slog.Warn("Discarding malformed cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		slog.Warn("Metadata cache write failed", "key", key, "error", err)
	}
}
