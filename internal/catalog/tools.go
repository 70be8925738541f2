package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/catalog-chat/internal/gateway"
)

// ToolDefinition is the OpenAI-compatible function schema handed to the
// model so it can request metadata lookups.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ExecuteTool runs the named tool and renders its output as display text.
// Failures the model (or user) can act on — missing arguments, unknown
// tables, unknown tool names — come back as text rather than errors, so the
// result is always renderable. Only auth and transport failures propagate.
func (c *Client) ExecuteTool(ctx context.Context, name string, args map[string]string) (string, error) {
	switch name {
	case "list_tables":
		catalog, schema := args["catalog"], args["schema"]
		if catalog == "" || schema == "" {
			return "Error: catalog and schema are required parameters", nil
		}

		tables, err := c.ListTables(ctx, catalog, schema)
		if apiMsg, ok := apiErrorText(err); ok {
			return apiMsg, nil
		}
		if err != nil {
			return "", err
		}
		return formatTableList(catalog, schema, tables), nil

	case "get_table_details":
		catalog, schema, table := args["catalog"], args["schema"], args["table"]
		if catalog == "" || schema == "" || table == "" {
			return "Error: catalog, schema and table are required parameters", nil
		}

		details, err := c.GetTable(ctx, catalog, schema, table)
		if apiMsg, ok := apiErrorText(err); ok {
			return apiMsg, nil
		}
		if err != nil {
			return "", err
		}
		return formatTableDetails(details), nil

	case "get_table_lineage":
		catalog, schema, table := args["catalog"], args["schema"], args["table"]
		if catalog == "" || schema == "" || table == "" {
			return "Error: catalog, schema and table are required parameters", nil
		}

		lineage, err := c.GetLineage(ctx, catalog, schema, table)
		if apiMsg, ok := apiErrorText(err); ok {
			return apiMsg, nil
		}
		if err != nil {
			return "", err
		}
		return formatLineage(fmt.Sprintf("%s.%s.%s", catalog, schema, table), lineage), nil

	default:
		return fmt.Sprintf("Error: unknown tool %q", name), nil
	}
}

func apiErrorText(err error) (string, bool) {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Error: %s: %s", apiErr.Code, apiErr.Message), true
	}
	return "", false
}

func formatTableList(catalog, schema string, tables []TableSummary) string {
	if len(tables) == 0 {
		return fmt.Sprintf("No tables found in schema %s.%s.", catalog, schema)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tables in schema %s.%s:\n\n", catalog, schema)
	for _, t := range tables {
		fmt.Fprintf(&b, "- %s (%s)", t.Name, t.TableType)
		if t.Comment != "" {
			fmt.Fprintf(&b, ": %s", t.Comment)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatTableDetails(details *TableInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", details.FullName)
	fmt.Fprintf(&b, "Type: %s\n", details.TableType)
	if details.Comment != "" {
		fmt.Fprintf(&b, "Description: %s\n", details.Comment)
	}
	b.WriteString("\nColumns:\n")
	for _, col := range details.Columns {
		fmt.Fprintf(&b, "- %s (%s)", col.Name, col.TypeName)
		if col.Comment != "" {
			fmt.Fprintf(&b, ": %s", col.Comment)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatLineage(fullName string, lineage *TableLineage) string {
	if len(lineage.Upstreams) == 0 && len(lineage.Downstreams) == 0 {
		return fmt.Sprintf("No lineage recorded for table %s.", fullName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Lineage for table %s:\n", fullName)
	if len(lineage.Upstreams) > 0 {
		b.WriteString("\nUpstream tables:\n")
		for _, ref := range lineage.Upstreams {
			fmt.Fprintf(&b, "- %s\n", ref.FullName())
		}
	}
	if len(lineage.Downstreams) > 0 {
		b.WriteString("\nDownstream tables:\n")
		for _, ref := range lineage.Downstreams {
			fmt.Fprintf(&b, "- %s\n", ref.FullName())
		}
	}
	return b.String()
}

// FunctionDefinitions returns the tool schema exposed to the model.
func FunctionDefinitions() []ToolDefinition {
	catalogParam := map[string]any{
		"type":        "string",
		"description": "Catalog name (e.g. main)",
	}
	schemaParam := map[string]any{
		"type":        "string",
		"description": "Schema name (e.g. demo_sales)",
	}
	tableParam := map[string]any{
		"type":        "string",
		"description": "Table name",
	}

	return []ToolDefinition{
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        "list_tables",
				Description: "List the tables in a catalog schema. Returns every table name, its type and its comment.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"catalog": catalogParam,
						"schema":  schemaParam,
					},
					"required": []string{"catalog", "schema"},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        "get_table_details",
				Description: "Get details for one table: column names, data types and comments.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"catalog": catalogParam,
						"schema":  schemaParam,
						"table":   tableParam,
					},
					"required": []string{"catalog", "schema", "table"},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        "get_table_lineage",
				Description: "Get the upstream and downstream tables related to one table.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"catalog": catalogParam,
						"schema":  schemaParam,
						"table":   tableParam,
					},
					"required": []string{"catalog", "schema", "table"},
				},
			},
		},
	}
}
