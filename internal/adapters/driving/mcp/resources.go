package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mce/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for ledger resources.
	uriScheme = "mce://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "ledger/summary",
		Name:        "ledger-summary",
		Description: "Gap counts by status",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "run/status",
		Name:        "run-status",
		Description: "Phase and progress of the active or most recent run",
		MIMEType:    "application/json",
	}, s.handleRunStatusResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "gaps/{gapId}",
		Name:        "gap",
		Description: "A single gap with its attempt history",
		MIMEType:    "application/json",
	}, s.handleGapResource)
}

// handleSummaryResource returns ledger counts.
func (s *Server) handleSummaryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	summary, err := s.ports.Gaps.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarising ledger: %w", err)
	}
	return jsonResource(req.Params.URI, toSummaryOutput(summary))
}

// handleRunStatusResource returns the run status.
func (s *Server) handleRunStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	_, status, err := s.handleRunStatus(ctx, nil, RunStatusInput{})
	if err != nil {
		return nil, fmt.Errorf("reading run status: %w", err)
	}
	return jsonResource(req.Params.URI, status)
}

// handleGapResource returns a single gap.
func (s *Server) handleGapResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// mce://gaps/{gapId}
	gapID := extractGapID(req.Params.URI)
	if gapID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	_, details, err := s.handleGetGap(ctx, nil, GetGapInput{GapID: gapID})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting gap: %w", err)
	}
	return jsonResource(req.Params.URI, details)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractGapID extracts the gap ID from a URI like mce://gaps/{gapId}.
func extractGapID(uri string) string {
	const prefix = uriScheme + "gaps/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return ""
	}
	return id
}
