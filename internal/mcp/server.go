package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mot-search/internal/catalog"
	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/service"
)

// DefaultMaxDisplayRows caps rendered tables when no limit is configured.
const DefaultMaxDisplayRows = 50

// SearchService is what the tools need from the search service.
type SearchService interface {
	IsReady() bool
	Search(ctx context.Context, c domain.Criteria) (*domain.ResultTable, error)
	PassRate(ctx context.Context, c domain.Criteria, dimension string) (*service.PassRates, error)
	Catalog() (*catalog.Catalog, error)
}

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name           string
	Version        string
	Service        SearchService
	MaxDisplayRows int
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Service != nil {
		maxRows := cfg.MaxDisplayRows
		if maxRows <= 0 {
			maxRows = DefaultMaxDisplayRows
		}
		RegisterSearchTool(s, cfg.Service, maxRows)
		RegisterPassRateTool(s, cfg.Service)
		RegisterCatalogTool(s, cfg.Service)
	}

	return s
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

const notReadyMessage = "Search is not available. The dataset is still loading. Please try again later."
