package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// defaultListLimit caps list_gaps when the caller gives no limit.
const defaultListLimit = 50

// ListGapsInput is the input schema for the list_gaps tool.
type ListGapsInput struct {
	Statuses []string `json:"statuses,omitempty" jsonschema:"gap statuses to include (default: open and requires_retry)"`
	Kinds    []string `json:"kinds,omitempty" jsonschema:"gap kinds to include, e.g. missing_description"`
	RuleIDs  []string `json:"rule_ids,omitempty" jsonschema:"only gaps raised by these rules"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of gaps to return (default 50)"`
}

// ListGapsOutput is the output schema for the list_gaps tool.
type ListGapsOutput struct {
	Gaps  []GapOutput `json:"gaps"`
	Count int         `json:"count"`
}

// GapOutput is the wire form of a single gap.
type GapOutput struct {
	ID               string   `json:"id"`
	RuleID           string   `json:"rule_id"`
	Kind             string   `json:"kind"`
	TargetType       string   `json:"target_type"`
	TargetID         string   `json:"target_id"`
	Description      string   `json:"description"`
	Severity         string   `json:"severity"`
	Priority         int      `json:"priority"`
	Status           string   `json:"status"`
	AttemptCount     int      `json:"attempt_count"`
	ResolutionNotes  string   `json:"resolution_notes,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// GetGapInput is the input schema for the get_gap tool.
type GetGapInput struct {
	GapID string `json:"gap_id" jsonschema:"the gap identifier as returned by list_gaps"`
}

// GetGapOutput is the output schema for the get_gap tool.
type GetGapOutput struct {
	Gap      GapOutput       `json:"gap"`
	NodeName string          `json:"node_name,omitempty"`
	Attempts []AttemptOutput `json:"attempts"`
}

// AttemptOutput is the wire form of one resolution attempt.
type AttemptOutput struct {
	Strategy   string  `json:"strategy"`
	At         string  `json:"at"`
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// SummaryInput is the input schema for the ledger_summary tool.
type SummaryInput struct{}

// SummaryOutput counts ledger gaps by status.
type SummaryOutput struct {
	Total     int            `json:"total"`
	Open      int            `json:"open"`
	Resolved  int            `json:"resolved"`
	Failed    int            `json:"failed"`
	Escalated int            `json:"escalated"`
	ByStatus  map[string]int `json:"by_status"`
}

// RunStatusInput is the input schema for the run_status tool.
type RunStatusInput struct{}

// RunStatusOutput describes the active or most recent run.
type RunStatusOutput struct {
	RunID      string `json:"run_id"`
	Running    bool   `json:"running"`
	Phase      string `json:"phase"`
	Pass       int    `json:"pass"`
	GapsWorked int    `json:"gaps_worked"`
}

// StartRunInput is the input schema for the start_run tool.
type StartRunInput struct {
	Scan  bool `json:"scan,omitempty" jsonschema:"scan the configured sources before resolving gaps"`
	Fresh bool `json:"fresh,omitempty" jsonschema:"discard attempt history from earlier runs"`
}

// StartRunOutput summarises a finished run.
type StartRunOutput struct {
	RunID     string         `json:"run_id"`
	Reason    string         `json:"reason"`
	Passes    int            `json:"passes"`
	Resolved  int            `json:"resolved"`
	Failed    int            `json:"failed"`
	Escalated int            `json:"escalated"`
	Open      int            `json:"open"`
	ByStatus  map[string]int `json:"by_status"`
}

// ForceRetryInput is the input schema for the force_retry tool.
type ForceRetryInput struct {
	GapID    string `json:"gap_id" jsonschema:"the gap to retry"`
	Strategy string `json:"strategy" jsonschema:"semantic_lookup, targeted_code_scan or targeted_doc_scan"`
}

// ForceRetryOutput confirms a forced retry.
type ForceRetryOutput struct {
	GapID    string `json:"gap_id"`
	Strategy string `json:"strategy"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_gaps",
		Description: "List metadata gaps from the ledger in resolution order",
	}, s.handleListGaps)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_gap",
		Description: "Show a gap with its target node and attempt history",
	}, s.handleGetGap)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ledger_summary",
		Description: "Count ledger gaps by status",
	}, s.handleSummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_status",
		Description: "Report the phase and progress of the active or most recent run",
	}, s.handleRunStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "start_run",
		Description: "Run the gap-driven extraction loop until it terminates",
	}, s.handleStartRun)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "force_retry",
		Description: "Force the next attempt on a gap to use a specific strategy",
	}, s.handleForceRetry)
}

// handleListGaps handles the list_gaps tool invocation.
func (s *Server) handleListGaps(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListGapsInput,
) (*mcp.CallToolResult, ListGapsOutput, error) {
	filter, err := buildFilter(input)
	if err != nil {
		return nil, ListGapsOutput{}, err
	}

	gaps, err := s.ports.Gaps.List(ctx, filter)
	if err != nil {
		return nil, ListGapsOutput{}, err
	}

	output := ListGapsOutput{
		Gaps:  make([]GapOutput, len(gaps)),
		Count: len(gaps),
	}
	for i := range gaps {
		output.Gaps[i] = toGapOutput(&gaps[i])
	}

	return nil, output, nil
}

// handleGetGap handles the get_gap tool invocation.
func (s *Server) handleGetGap(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetGapInput,
) (*mcp.CallToolResult, GetGapOutput, error) {
	if input.GapID == "" {
		return nil, GetGapOutput{}, fmt.Errorf("gap_id is required: %w", domain.ErrInvalidInput)
	}

	details, err := s.ports.Gaps.Get(ctx, input.GapID)
	if err != nil {
		return nil, GetGapOutput{}, err
	}

	output := GetGapOutput{
		Gap:      toGapOutput(&details.Gap),
		Attempts: make([]AttemptOutput, len(details.Attempts)),
	}
	if details.Node != nil {
		output.NodeName = details.Node.Name()
	}
	for i, a := range details.Attempts {
		output.Attempts[i] = AttemptOutput{
			Strategy:   string(a.Strategy),
			At:         a.At.UTC().Format(time.RFC3339),
			Outcome:    string(a.Outcome),
			Confidence: a.Confidence,
			Notes:      a.Notes,
		}
	}

	return nil, output, nil
}

// handleSummary handles the ledger_summary tool invocation.
func (s *Server) handleSummary(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ SummaryInput,
) (*mcp.CallToolResult, SummaryOutput, error) {
	summary, err := s.ports.Gaps.Summary(ctx)
	if err != nil {
		return nil, SummaryOutput{}, err
	}
	return nil, toSummaryOutput(summary), nil
}

// handleRunStatus handles the run_status tool invocation.
func (s *Server) handleRunStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ RunStatusInput,
) (*mcp.CallToolResult, RunStatusOutput, error) {
	status, err := s.ports.Orchestrator.Status(ctx)
	if err != nil {
		return nil, RunStatusOutput{}, err
	}
	return nil, RunStatusOutput{
		RunID:      status.RunID,
		Running:    status.Running,
		Phase:      string(status.Phase),
		Pass:       status.Pass,
		GapsWorked: status.GapsWorked,
	}, nil
}

// handleStartRun handles the start_run tool invocation.
func (s *Server) handleStartRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartRunInput,
) (*mcp.CallToolResult, StartRunOutput, error) {
	req := driving.RunRequest{Fresh: input.Fresh}
	if input.Scan {
		req.Sources = s.ports.Sources
	}

	summary, err := s.ports.Orchestrator.Run(ctx, req)
	if err != nil {
		return nil, StartRunOutput{}, err
	}

	return nil, StartRunOutput{
		RunID:     summary.RunID,
		Reason:    string(summary.Reason),
		Passes:    summary.Passes,
		Resolved:  summary.Resolved,
		Failed:    summary.Failed,
		Escalated: summary.Escalated,
		Open:      summary.Open,
		ByStatus:  statusCounts(summary.ByStatus),
	}, nil
}

// handleForceRetry handles the force_retry tool invocation.
func (s *Server) handleForceRetry(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ForceRetryInput,
) (*mcp.CallToolResult, ForceRetryOutput, error) {
	if input.GapID == "" {
		return nil, ForceRetryOutput{}, fmt.Errorf("gap_id is required: %w", domain.ErrInvalidInput)
	}
	strategy := domain.Strategy(input.Strategy)
	if !strategy.IsValid() || strategy == domain.StrategyEscalate {
		return nil, ForceRetryOutput{}, fmt.Errorf("unknown strategy %q: %w", input.Strategy, domain.ErrInvalidInput)
	}

	if err := s.ports.Orchestrator.ForceRetry(ctx, input.GapID, strategy); err != nil {
		return nil, ForceRetryOutput{}, err
	}

	return nil, ForceRetryOutput{GapID: input.GapID, Strategy: input.Strategy}, nil
}

func buildFilter(input ListGapsInput) (domain.GapFilter, error) {
	filter := domain.GapFilter{
		RuleIDs: input.RuleIDs,
		Limit:   input.Limit,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	for _, raw := range input.Statuses {
		status := domain.GapStatus(raw)
		if !status.IsValid() {
			return domain.GapFilter{}, fmt.Errorf("unknown status %q: %w", raw, domain.ErrInvalidInput)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range input.Kinds {
		filter.Kinds = append(filter.Kinds, domain.GapKind(raw))
	}
	return filter, nil
}

func toGapOutput(g *domain.MetadataGap) GapOutput {
	out := GapOutput{
		ID:              g.ID,
		RuleID:          g.RuleID,
		Kind:            string(g.Kind),
		TargetType:      string(g.Target.Type),
		TargetID:        g.Target.ID,
		Description:     g.Description,
		Severity:        string(g.Severity),
		Priority:        g.Priority,
		Status:          string(g.Status),
		AttemptCount:    g.AttemptCount,
		ResolutionNotes: g.ResolutionNotes,
	}
	for _, a := range g.SuggestedActions {
		out.SuggestedActions = append(out.SuggestedActions, string(a))
	}
	return out
}

func toSummaryOutput(s *driving.LedgerSummary) SummaryOutput {
	return SummaryOutput{
		Total:     s.Total,
		Open:      s.Open,
		Resolved:  s.Resolved,
		Failed:    s.Failed,
		Escalated: s.Escalated,
		ByStatus:  statusCounts(s.ByStatus),
	}
}

func statusCounts(in map[domain.GapStatus]int) map[string]int {
	out := make(map[string]int, len(in))
	for status, n := range in {
		out[string(status)] = n
	}
	return out
}
