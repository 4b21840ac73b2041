package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/service"
)

// PassRateArgument defines pass-rate analysis parameters.
type PassRateArgument struct {
	Dimension  string `json:"dimension" jsonschema_description:"Analysis dimension: age or mileage"`
	Make       string `json:"make,omitempty" jsonschema_description:"Vehicle make, case insensitive"`
	Model      string `json:"model,omitempty" jsonschema_description:"Vehicle model, case insensitive"`
	Year       *int   `json:"year,omitempty" jsonschema_description:"Year of first use"`
	MinMileage *int   `json:"min_mileage,omitempty" jsonschema_description:"Lower mileage bound, inclusive"`
	MaxMileage *int   `json:"max_mileage,omitempty" jsonschema_description:"Upper mileage bound, inclusive"`
}

// PassRateHandler handles the pass_rate MCP tool.
type PassRateHandler struct {
	service SearchService
}

// NewPassRateHandler creates a new pass-rate handler.
func NewPassRateHandler(service SearchService) *PassRateHandler {
	return &PassRateHandler{service: service}
}

// Handle runs the search and analyses its result.
func (h *PassRateHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args PassRateArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult(notReadyMessage), nil, nil
	}

	dimension := strings.ToLower(strings.TrimSpace(args.Dimension))
	if dimension == "" {
		return errorResult("Dimension cannot be empty. Use 'age' or 'mileage'"), nil, nil
	}

	criteria := domain.Criteria{
		Make:       args.Make,
		Model:      args.Model,
		Year:       args.Year,
		MinMileage: args.MinMileage,
		MaxMileage: args.MaxMileage,
	}
	rates, err := h.service.PassRate(ctx, criteria, dimension)
	if err != nil {
		return errorResult(fmt.Sprintf("Pass-rate analysis failed: %s", err)), nil, nil
	}

	return formatPassRates(rates), nil, nil
}

func formatPassRates(r *service.PassRates) *mcp.CallToolResult {
	if r.Rows == 0 {
		return textResult(fmt.Sprintf("No MOT tests found for: %s", r.Criteria))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pass rate by %s over %d tests for '%s':\n\n", r.Dimension, r.Rows, r.Criteria))

	switch r.Dimension {
	case service.DimensionAge:
		if len(r.Age) == 0 {
			sb.WriteString("No tests with both a test date and a first use date.\n")
		}
		for _, p := range r.Age {
			sb.WriteString(fmt.Sprintf("- age %d: %.1f%% (%d/%d)\n", p.Age, p.Rate*100, p.Passed, p.Total))
		}
	case service.DimensionMileage:
		for _, p := range r.Mileage {
			sb.WriteString(fmt.Sprintf("- %s miles: %.1f%% (%d/%d)\n", p.Bucket, p.Rate*100, p.Passed, p.Total))
		}
	}

	return textResult(sb.String())
}

// GetToolDefinition returns the MCP tool definition.
func (h *PassRateHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pass_rate",
		Description: "Compute MOT pass rates by vehicle age or by 10000 mile bands over the tests matching the given criteria",
	}
}

// RegisterPassRateTool registers the pass-rate tool with an MCP server.
func RegisterPassRateTool(server *mcp.Server, service SearchService) {
	handler := NewPassRateHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
