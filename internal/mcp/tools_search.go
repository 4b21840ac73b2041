package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mot-search/internal/domain"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Make       string `json:"make,omitempty" jsonschema_description:"Vehicle make, case insensitive (e.g., FORD)"`
	Model      string `json:"model,omitempty" jsonschema_description:"Vehicle model, case insensitive (e.g., FOCUS)"`
	Year       *int   `json:"year,omitempty" jsonschema_description:"Year of first use"`
	MinMileage *int   `json:"min_mileage,omitempty" jsonschema_description:"Lower mileage bound, inclusive. Requires max_mileage"`
	MaxMileage *int   `json:"max_mileage,omitempty" jsonschema_description:"Upper mileage bound, inclusive. Requires min_mileage"`
}

// Criteria converts the arguments to search criteria.
func (a SearchArgument) Criteria() domain.Criteria {
	return domain.Criteria{
		Make:       a.Make,
		Model:      a.Model,
		Year:       a.Year,
		MinMileage: a.MinMileage,
		MaxMileage: a.MaxMileage,
	}
}

// SearchHandler handles the search MCP tool.
type SearchHandler struct {
	service SearchService
	maxRows int
}

// NewSearchHandler creates a new search handler rendering at most maxRows
// rows per result.
func NewSearchHandler(service SearchService, maxRows int) *SearchHandler {
	if maxRows <= 0 {
		maxRows = DefaultMaxDisplayRows
	}
	return &SearchHandler{
		service: service,
		maxRows: maxRows,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult(notReadyMessage), nil, nil
	}

	criteria := args.Criteria()
	table, err := h.service.Search(ctx, criteria)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return h.formatResults(table, criteria), nil, nil
}

func (h *SearchHandler) formatResults(table *domain.ResultTable, criteria domain.Criteria) *mcp.CallToolResult {
	if table.Len() == 0 {
		return textResult(fmt.Sprintf("No MOT tests found for: %s", criteria))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d MOT tests for '%s':\n\n", table.Len(), criteria))
	writeMarkdownTable(&sb, table, h.maxRows)

	if table.Len() > h.maxRows {
		sb.WriteString(fmt.Sprintf("\n... and %d more rows\n", table.Len()-h.maxRows))
	}

	return textResult(sb.String())
}

// writeMarkdownTable renders the header and up to maxRows rows.
func writeMarkdownTable(sb *strings.Builder, table *domain.ResultTable, maxRows int) {
	writeMarkdownRow(sb, table.Columns)
	sep := make([]string, len(table.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	writeMarkdownRow(sb, sep)

	for i, row := range table.Rows {
		if i == maxRows {
			break
		}
		writeMarkdownRow(sb, row.Values())
	}
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(c, "|", "\\|"))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_mot_tests",
		Description: "Search MOT test records by vehicle make, model, year of first use and test mileage range. Returns the matching tests joined with their vehicles.",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service SearchService, maxRows int) {
	handler := NewSearchHandler(service, maxRows)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
