package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mot-search/internal/catalog"
)

// CatalogArgument defines catalog lookup parameters.
type CatalogArgument struct {
	Make   string `json:"make,omitempty" jsonschema_description:"List models of this make. Lists makes when empty"`
	Prefix string `json:"prefix,omitempty" jsonschema_description:"Only names starting with this prefix"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of entries (default 20)"`
}

// CatalogHandler handles the vehicle_catalog MCP tool.
type CatalogHandler struct {
	service SearchService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(service SearchService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Handle lists makes, or the models of a make.
func (h *CatalogHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args CatalogArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult(notReadyMessage), nil, nil
	}
	if args.Limit < 0 {
		return errorResult("Limit cannot be negative"), nil, nil
	}

	cat, err := h.service.Catalog()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to access catalog: %s", err)), nil, nil
	}

	var (
		entries []catalog.Entry
		title   string
	)
	if strings.TrimSpace(args.Make) == "" {
		entries, err = cat.Makes(args.Prefix, args.Limit)
		title = "Makes"
	} else {
		entries, err = cat.Models(args.Make, args.Prefix, args.Limit)
		title = fmt.Sprintf("Models of %s", strings.ToUpper(strings.TrimSpace(args.Make)))
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Catalog lookup failed: %s", err)), nil, nil
	}

	if len(entries) == 0 {
		return textResult("No catalog entries found"), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(title + ":\n\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("- %s (%d vehicles)\n", e.Name, e.Vehicles))
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *CatalogHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vehicle_catalog",
		Description: "List the vehicle makes in the dataset, or the models of one make, most common first. Use it to find valid search criteria.",
	}
}

// RegisterCatalogTool registers the catalog tool with an MCP server.
func RegisterCatalogTool(server *mcp.Server, service SearchService) {
	handler := NewCatalogHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
