package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/user/catalog-chat/internal/gateway"
)

func toolClient(sender gateway.Sender) *Client {
	return NewClient(sender, "https://workspace.example.com", nil, time.Minute)
}

func TestExecuteTool_ListTables(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body: []byte(`{"tables": [
				{"name": "orders", "table_type": "MANAGED", "comment": "Order facts"},
				{"name": "customers", "table_type": "VIEW"}
			]}`),
		},
	}

	out, err := toolClient(sender).ExecuteTool(context.Background(), "list_tables", map[string]string{
		"catalog": "main",
		"schema":  "demo_sales",
	})

	assert.NoError(t, err)
	assert.Contains(t, out, "Tables in schema main.demo_sales:")
	assert.Contains(t, out, "- orders (MANAGED): Order facts")
	assert.Contains(t, out, "- customers (VIEW)")
}

func TestExecuteTool_ListTablesEmpty(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{Status: http.StatusOK, Body: []byte(`{"tables": []}`)},
	}

	out, err := toolClient(sender).ExecuteTool(context.Background(), "list_tables", map[string]string{
		"catalog": "main",
		"schema":  "empty_schema",
	})

	assert.NoError(t, err)
	assert.Equal(t, "No tables found in schema main.empty_schema.", out)
}

func TestExecuteTool_GetTableDetails(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body: []byte(`{
				"full_name": "main.demo_sales.orders",
				"name": "orders",
				"table_type": "MANAGED",
				"comment": "Order facts",
				"columns": [{"name": "order_id", "type_name": "BIGINT", "comment": "PK"}]
			}`),
		},
	}

	out, err := toolClient(sender).ExecuteTool(context.Background(), "get_table_details", map[string]string{
		"catalog": "main",
		"schema":  "demo_sales",
		"table":   "orders",
	})

	assert.NoError(t, err)
	assert.Contains(t, out, "Table: main.demo_sales.orders")
	assert.Contains(t, out, "Type: MANAGED")
	assert.Contains(t, out, "Description: Order facts")
	assert.Contains(t, out, "- order_id (BIGINT): PK")
}

func TestExecuteTool_GetTableLineage(t *testing.T) {
	sender := &fakeSender{
		result: &gateway.Result{
			Status: http.StatusOK,
			Body:   []byte(`{"upstreams": [{"tableInfo": {"catalog_name": "main", "schema_name": "raw", "name": "orders_raw"}}]}`),
		},
	}

	out, err := toolClient(sender).ExecuteTool(context.Background(), "get_table_lineage", map[string]string{
		"catalog": "main",
		"schema":  "demo_sales",
		"table":   "orders",
	})

	assert.NoError(t, err)
	assert.Contains(t, out, "Lineage for table main.demo_sales.orders:")
	assert.Contains(t, out, "- main.raw.orders_raw")
}

func TestExecuteTool_MissingArguments(t *testing.T) {
	out, err := toolClient(&fakeSender{}).ExecuteTool(context.Background(), "list_tables", map[string]string{
		"catalog": "main",
	})

	assert.NoError(t, err)
	assert.Contains(t, out, "catalog and schema are required")
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	out, err := toolClient(&fakeSender{}).ExecuteTool(context.Background(), "drop_table", nil)

	assert.NoError(t, err)
	assert.Contains(t, out, `unknown tool "drop_table"`)
}

func TestExecuteTool_TableNotFoundRendersAPIError(t *testing.T) {
	sender := &fakeSender{
		err: &gateway.APIError{Status: 404, Code: "TABLE_DOES_NOT_EXIST", Message: "Table 'main.demo_sales.missing' does not exist."},
	}

	out, err := toolClient(sender).ExecuteTool(context.Background(), "get_table_details", map[string]string{
		"catalog": "main",
		"schema":  "demo_sales",
		"table":   "missing",
	})

	assert.NoError(t, err)
	assert.Contains(t, out, "TABLE_DOES_NOT_EXIST")
	assert.Contains(t, out, "does not exist")
}

func TestExecuteTool_TransportErrorPropagates(t *testing.T) {
	sender := &fakeSender{err: &gateway.TransportError{Err: assert.AnError}}

	_, err := toolClient(sender).ExecuteTool(context.Background(), "list_tables", map[string]string{
		"catalog": "main",
		"schema":  "demo_sales",
	})

	var transportErr *gateway.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestFunctionDefinitions(t *testing.T) {
	defs := FunctionDefinitions()

	assert.Len(t, defs, 3)

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		assert.Equal(t, "function", d.Type)
		assert.NotEmpty(t, d.Function.Description)
		assert.Equal(t, "object", d.Function.Parameters["type"])
		names = append(names, d.Function.Name)
	}
	assert.Equal(t, []string{"list_tables", "get_table_details", "get_table_lineage"}, names)
}
