package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
	"github.com/custodia-labs/mce/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.Orchestrator = (*Orchestrator)(nil)

// Orchestrator runs the scan, analyse and resolve loop over the metadata graph.
type Orchestrator struct {
	graph     driven.GraphStore
	semantic  driven.SemanticStore
	scanners  map[domain.SourceKind]driven.Scanner
	evaluator *CompletenessEvaluator
	selector  *StrategySelector
	assessor  driven.Assessor
	states    driven.StateStore
	settings  domain.Settings
	ingest    *ingester
	now       func() time.Time

	// mu guards the fields below.
	mu      sync.RWMutex
	running bool
	state   *domain.AgentState
	worked  int
	pending map[string]domain.Strategy
}

// NewOrchestrator creates an orchestrator.
// The assessor and states are optional: without an assessor semantic lookups never
// resolve a gap, and without a state store no checkpoints are written.
func NewOrchestrator(
	graph driven.GraphStore,
	semantic driven.SemanticStore,
	evaluator *CompletenessEvaluator,
	scanners []driven.Scanner,
	assessor driven.Assessor,
	states driven.StateStore,
	settings domain.Settings,
) *Orchestrator {
	settings = settings.WithDefaults()
	byKind := make(map[domain.SourceKind]driven.Scanner, len(scanners))
	for _, s := range scanners {
		byKind[s.Kind()] = s
	}
	o := &Orchestrator{
		graph:     graph,
		semantic:  semantic,
		scanners:  byKind,
		evaluator: evaluator,
		selector:  NewStrategySelector(settings),
		assessor:  assessor,
		states:    states,
		settings:  settings,
		now:       time.Now,
		pending:   make(map[string]domain.Strategy),
	}
	o.ingest = &ingester{graph: graph, semantic: semantic, now: o.clock}
	return o
}

// SetClock replaces the time source used for attempts and checkpoints.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

func (o *Orchestrator) clock() time.Time {
	return o.now()
}

// Run scans the sources, detects gaps and resolves them until termination.
//
// The returned summary is always set once the run has started. On an invariant
// violation the summary carries TerminationAborted and the error is returned with it.
//
//nolint:gocyclo // State machine with one branch per termination condition
func (o *Orchestrator) Run(ctx context.Context, req driving.RunRequest) (*domain.RunSummary, error) {
	state, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	defer o.end()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", state.RunID))

	logger.Section("Run " + state.RunID)

	// Initial scanning
	o.setPhase(state, domain.PhaseInitialScanning)
	if err := o.scan(ctx, req.Sources); err != nil {
		return o.abort(ctx, span, state, err)
	}
	o.checkpoint(ctx, state)

	// Gap analysis
	o.setPhase(state, domain.PhaseGapAnalysis)
	if err := o.normaliseInProgress(ctx); err != nil {
		return o.abort(ctx, span, state, err)
	}
	if _, err := o.evaluator.EvaluateCompleteness(ctx, domain.Scope{}); err != nil {
		return o.abort(ctx, span, state, err)
	}

	// Gap resolution
	o.setPhase(state, domain.PhaseGapResolution)
	var reason domain.TerminationReason
	for {
		open, err := o.evaluator.GetOpenGaps(ctx, domain.GapFilter{})
		if err != nil {
			return o.abort(ctx, span, state, err)
		}
		if len(open) == 0 {
			reason = domain.TerminationSuccess
			break
		}
		if ctx.Err() != nil {
			reason = domain.TerminationCancelled
			break
		}
		if state.Pass >= o.settings.MaxPasses {
			reason = domain.TerminationBudgetExhausted
			break
		}

		o.mu.Lock()
		state.Pass++
		o.mu.Unlock()

		changed, err := o.runPass(ctx, state, open)
		o.checkpoint(ctx, state)
		if err != nil {
			return o.abort(ctx, span, state, err)
		}
		if ctx.Err() != nil {
			reason = domain.TerminationCancelled
			break
		}
		if changed == 0 {
			reason = domain.TerminationNoProgress
			break
		}
	}

	// Finalizing
	o.setPhase(state, domain.PhaseFinalizing)
	if reason == domain.TerminationNoProgress || reason == domain.TerminationBudgetExhausted {
		if err := o.escalateRemaining(context.WithoutCancel(ctx), reason); err != nil {
			return o.abort(ctx, span, state, err)
		}
	}

	summary, err := o.finish(context.WithoutCancel(ctx), state, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("run.reason", string(reason)),
		attribute.Int("run.passes", summary.Passes),
	)
	return summary, nil
}

// begin claims the single run slot and prepares the agent state.
func (o *Orchestrator) begin(ctx context.Context, req driving.RunRequest) (*domain.AgentState, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, domain.ErrRunInProgress
	}
	o.running = true
	o.worked = 0
	o.mu.Unlock()

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	state := domain.NewAgentState(runID, o.now())

	if o.states != nil {
		latest, err := o.states.LatestState(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			logger.Warn("Failed to load latest checkpoint: %v", err)
		default:
			if !req.Fresh {
				state.Attempts = latest.Clone().Attempts
			}
			for id, s := range latest.Forced {
				state.Forced[id] = s
			}
		}
	}

	o.mu.Lock()
	for id, s := range o.pending {
		state.Forced[id] = s
	}
	clear(o.pending)
	o.state = state
	o.mu.Unlock()

	return state, nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) setPhase(state *domain.AgentState, phase domain.Phase) {
	o.mu.Lock()
	state.Phase = phase
	state.UpdatedAt = o.now()
	o.mu.Unlock()
	logger.Debug("Phase: %s", phase)
}

// scan runs the broad scans in parallel and ingests their output.
func (o *Orchestrator) scan(ctx context.Context, sources []domain.ScanSource) error {
	if len(sources) == 0 {
		return nil
	}

	for _, src := range sources {
		if _, ok := o.scanners[src.Kind]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrScannerUnavailable, src.Kind)
		}
	}

	results := make([]*domain.ExtractedItems, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		scanner := o.scanners[src.Kind]
		g.Go(func() error {
			items, err := scanner.ScanBroad(gctx, src)
			if err != nil {
				logger.Warn("Broad %s scan of %s failed: %v", src.Kind, src.Root, err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, items := range results {
		if items == nil {
			continue
		}
		for _, f := range items.Failures {
			logger.Warn("Scan failure at %s: %s", f.Location, f.Reason)
		}
		if _, err := o.ingest.ingest(ctx, items, ingestAuthoritative); err != nil {
			return fmt.Errorf("ingest %s scan of %s: %w", sources[i].Kind, sources[i].Root, err)
		}
		logger.Info("Ingested %s scan of %s: %d entities, %d fields, %d documents, %d chunks",
			sources[i].Kind, sources[i].Root,
			len(items.Entities), len(items.Fields), len(items.Documents), len(items.Chunks))
	}
	return nil
}

// normaliseInProgress returns gaps left in progress by an interrupted run to requires_retry.
func (o *Orchestrator) normaliseInProgress(ctx context.Context) error {
	gaps, err := o.graph.ListGaps(ctx, domain.GapFilter{Statuses: []domain.GapStatus{
		domain.GapInProgressSemantic, domain.GapInProgressTargetedCode, domain.GapInProgressTargetedDoc,
	}})
	if err != nil {
		return fmt.Errorf("list in-progress gaps: %w", err)
	}
	for i := range gaps {
		gap := gaps[i]
		gap.Status = domain.GapRequiresRetry
		gap.UpdatedAt = o.now()
		gap.AppendNote("interrupted attempt reset for retry")
		if _, err := o.graph.UpsertGap(ctx, &gap); err != nil {
			return fmt.Errorf("reset gap %s: %w", gap.ID, err)
		}
	}
	if len(gaps) > 0 {
		logger.Info("Reset %d interrupted gaps to requires_retry", len(gaps))
	}
	return nil
}

// runPass works every gap once, batch by batch, and returns the number of status changes.
func (o *Orchestrator) runPass(ctx context.Context, state *domain.AgentState, gaps []domain.MetadataGap) (int, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.pass")
	defer span.End()
	span.SetAttributes(attribute.Int("pass", state.Pass), attribute.Int("pass.gaps", len(gaps)))

	start := time.Now()
	defer func() { recordPass(time.Since(start)) }()

	logger.Section(fmt.Sprintf("Pass %d: %d gaps", state.Pass, len(gaps)))

	work := make([]gapWork, 0, len(gaps))
	changed := 0
	for i := range gaps {
		gap := gaps[i]
		view, err := o.graph.Node(ctx, gap.Target)
		if errors.Is(err, domain.ErrNotFound) {
			if err := o.failMissingTarget(ctx, gap); err != nil {
				return changed, err
			}
			changed++
			continue
		}
		if err != nil {
			logger.Warn("Skipping gap %s: load target: %v", gap.ID, err)
			continue
		}
		work = append(work, gapWork{gap: gap, node: view})
	}

	var mu sync.Mutex
	for _, batch := range partition(work) {
		if ctx.Err() != nil {
			return changed, nil
		}

		g := new(errgroup.Group)
		g.SetLimit(o.settings.Workers)
		for _, w := range batch {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				didChange, err := o.resolveGap(ctx, state, w)
				if err != nil {
					return err
				}
				if didChange {
					mu.Lock()
					changed++
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return changed, err
		}
	}

	span.SetAttributes(attribute.Int("pass.changes", changed))
	return changed, nil
}

func (o *Orchestrator) failMissingTarget(ctx context.Context, gap domain.MetadataGap) error {
	gap.Status = domain.GapFailed
	gap.UpdatedAt = o.now()
	gap.AppendNote("target node no longer exists")
	if _, err := o.graph.UpsertGap(ctx, &gap); err != nil {
		return fmt.Errorf("fail gap %s: %w", gap.ID, err)
	}
	recordTransition(string(domain.GapFailed))
	logger.Warn("Gap %s failed: target %s missing", gap.ID, gap.Target)
	return nil
}

// resolveGap runs one reason, act, observe cycle for a gap.
// Only invariant violations are returned as errors.
func (o *Orchestrator) resolveGap(ctx context.Context, state *domain.AgentState, w gapWork) (bool, error) {
	// Work from the ledger copy; an earlier batch may have settled the gap.
	current, err := o.graph.GetGap(ctx, w.gap.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		logger.Warn("Skipping gap %s: reload: %v", w.gap.ID, err)
		return false, nil
	}
	if !current.Status.IsWorkable() {
		logger.Debug("Gap %s is %s, skipping", current.ID, current.Status)
		return false, nil
	}
	node, err := o.graph.Node(ctx, current.Target)
	if errors.Is(err, domain.ErrNotFound) {
		if err := o.failMissingTarget(ctx, *current); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		logger.Warn("Skipping gap %s: load target: %v", current.ID, err)
		return false, nil
	}

	gap := *current
	before := gap.Status

	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.resolveGap")
	defer span.End()
	span.SetAttributes(
		attribute.String("gap.id", gap.ID),
		attribute.String("gap.kind", string(gap.Kind)),
		attribute.Int("gap.attempts", gap.AttemptCount),
	)

	// Reason
	o.mu.Lock()
	history := append(domain.AttemptHistory(nil), state.History(gap.ID)...)
	forced := state.Forced[gap.ID]
	delete(state.Forced, gap.ID)
	o.mu.Unlock()

	decision := o.selector.Select(&gap, node, history, forced)
	span.SetAttributes(attribute.String("gap.strategy", string(decision.Strategy)))
	logger.Debug("Gap %s: %s (%s)", gap.ID, decision.Strategy, decision.Reason)

	// Past this point the cycle completes even if ctx is cancelled.
	actx := context.WithoutCancel(ctx)

	if decision.Strategy == domain.StrategyEscalate {
		latest, err := o.graph.GetGap(actx, gap.ID)
		if err != nil {
			return false, o.gapError(span, gap.ID, err)
		}
		if !latest.Status.IsWorkable() {
			return false, nil
		}
		gap = *latest
		gap.Status = domain.GapRequiresHumanInput
		gap.UpdatedAt = o.now()
		gap.AppendNote("escalated: " + decision.Reason)
		if _, err := o.graph.UpsertGap(actx, &gap); err != nil {
			return false, o.gapError(span, gap.ID, err)
		}
		recordTransition(string(gap.Status))
		logger.Info("Gap %s escalated: %s", gap.ID, decision.Reason)
		return true, nil
	}

	gap.Status = decision.Strategy.InProgressStatus()
	gap.UpdatedAt = o.now()
	if _, err := o.graph.UpsertGap(actx, &gap); err != nil {
		return false, o.gapError(span, gap.ID, err)
	}

	// Act
	obs := o.act(actx, &gap, node, decision.Strategy)
	if errors.Is(obs.err, domain.ErrInvariantViolation) {
		return false, o.gapError(span, gap.ID, obs.err)
	}

	// Observe
	at := o.now()
	o.mu.Lock()
	state.Record(domain.AttemptRecord{
		GapID:      gap.ID,
		Strategy:   decision.Strategy,
		At:         at,
		Outcome:    obs.outcome,
		Confidence: obs.confidence,
		Notes:      obs.notes,
	})
	state.UpdatedAt = at
	o.worked++
	o.mu.Unlock()
	recordAttempt(string(decision.Strategy), string(obs.outcome))

	gap.AttemptCount++
	gap.LastAttemptAt = at
	gap.UpdatedAt = at
	gap.Status = domain.GapRequiresRetry
	gap.AppendNote(fmt.Sprintf("%s: %s (confidence %.2f) %s",
		decision.Strategy, obs.outcome, obs.confidence, obs.notes))
	if _, err := o.graph.UpsertGap(actx, &gap); err != nil {
		return false, o.gapError(span, gap.ID, err)
	}

	scope := domain.ScopeOf(append([]string{gap.Target.ID}, obs.touched...)...)
	if _, err := o.evaluator.Evaluate(actx, scope); err != nil {
		return false, o.gapError(span, gap.ID, err)
	}

	after, err := o.graph.GetGap(actx, gap.ID)
	if err != nil {
		return false, o.gapError(span, gap.ID, err)
	}
	if after.Status == domain.GapResolvedAuto && obs.outcome == domain.OutcomeSuccess {
		after.Status = domain.GapResolved
		after.UpdatedAt = o.now()
		if _, err := o.graph.UpsertGap(actx, after); err != nil {
			return false, o.gapError(span, gap.ID, err)
		}
		recordTransition(string(domain.GapResolved))
	}

	if after.Status.IsResolved() {
		logger.Info("Gap %s resolved by %s", gap.ID, decision.Strategy)
	}
	span.SetAttributes(attribute.String("gap.status", string(after.Status)))

	// Trying a strategy for the first time moved the gap through a new
	// in-progress status, which counts as progress even if it ended where it began.
	return after.Status != before || !history.Tried(decision.Strategy), nil
}

func (o *Orchestrator) gapError(span trace.Span, gapID string, err error) error {
	err = fmt.Errorf("gap %s: %w", gapID, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// escalateRemaining marks every open or retryable gap as requiring human input.
func (o *Orchestrator) escalateRemaining(ctx context.Context, reason domain.TerminationReason) error {
	gaps, err := o.evaluator.GetOpenGaps(ctx, domain.GapFilter{})
	if err != nil {
		return err
	}
	for i := range gaps {
		gap := gaps[i]
		gap.Status = domain.GapRequiresHumanInput
		gap.UpdatedAt = o.now()
		gap.AppendNote("escalated at termination: " + string(reason))
		if _, err := o.graph.UpsertGap(ctx, &gap); err != nil {
			return fmt.Errorf("escalate gap %s: %w", gap.ID, err)
		}
		recordTransition(string(gap.Status))
	}
	if len(gaps) > 0 {
		logger.Info("Escalated %d remaining gaps (%s)", len(gaps), reason)
	}
	return nil
}

// abort ends the run after an invariant violation or store failure.
func (o *Orchestrator) abort(
	ctx context.Context,
	span trace.Span,
	state *domain.AgentState,
	cause error,
) (*domain.RunSummary, error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	logger.Error("Run %s aborted: %v", state.RunID, cause)

	summary, err := o.finish(context.WithoutCancel(ctx), state, domain.TerminationAborted)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return summary, fmt.Errorf("run %s aborted: %w", state.RunID, cause)
}

// finish terminates the run and builds the summary from the ledger.
func (o *Orchestrator) finish(ctx context.Context, state *domain.AgentState, reason domain.TerminationReason) (*domain.RunSummary, error) {
	o.setPhase(state, domain.PhaseTerminated)
	o.checkpoint(ctx, state)
	recordRun(string(reason))

	gaps, err := o.graph.ListGaps(ctx, domain.GapFilter{})
	if err != nil {
		return nil, fmt.Errorf("list gaps: %w", err)
	}

	summary := &domain.RunSummary{
		RunID:      state.RunID,
		Reason:     reason,
		Passes:     state.Pass,
		ByStatus:   make(map[domain.GapStatus]int),
		StartedAt:  state.StartedAt,
		FinishedAt: o.now(),
	}
	for i := range gaps {
		s := gaps[i].Status
		summary.ByStatus[s]++
		switch {
		case s.IsResolved():
			summary.Resolved++
		case s == domain.GapFailed:
			summary.Failed++
		case s == domain.GapRequiresHumanInput:
			summary.Escalated++
		default:
			summary.Open++
		}
	}

	logger.Info("Run %s terminated (%s) after %d passes: %d resolved, %d failed, %d escalated, %d open",
		summary.RunID, reason, summary.Passes, summary.Resolved, summary.Failed, summary.Escalated, summary.Open)
	return summary, nil
}

// checkpoint persists a copy of the agent state. Failures are logged, not fatal.
func (o *Orchestrator) checkpoint(ctx context.Context, state *domain.AgentState) {
	if o.states == nil {
		return
	}
	o.mu.RLock()
	snapshot := state.Clone()
	o.mu.RUnlock()
	if err := o.states.SaveState(ctx, snapshot); err != nil {
		logger.Warn("Failed to checkpoint run %s: %v", state.RunID, err)
	}
}

// Status returns the state of the active or most recent run.
func (o *Orchestrator) Status(ctx context.Context) (*domain.RunStatus, error) {
	o.mu.RLock()
	if o.state != nil {
		status := &domain.RunStatus{
			RunID:      o.state.RunID,
			Running:    o.running,
			Phase:      o.state.Phase,
			Pass:       o.state.Pass,
			GapsWorked: o.worked,
		}
		o.mu.RUnlock()
		return status, nil
	}
	o.mu.RUnlock()

	if o.states != nil {
		latest, err := o.states.LatestState(ctx)
		if err == nil {
			worked := 0
			for _, h := range latest.Attempts {
				worked += len(h)
			}
			return &domain.RunStatus{
				RunID:      latest.RunID,
				Phase:      latest.Phase,
				Pass:       latest.Pass,
				GapsWorked: worked,
			}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load latest state: %w", err)
		}
	}
	return &domain.RunStatus{Phase: domain.PhaseIdle}, nil
}

// ForceRetry requests that the next attempt on a gap uses the given strategy.
// Failed and escalated gaps are returned to requires_retry; resolved gaps are rejected.
func (o *Orchestrator) ForceRetry(ctx context.Context, gapID string, strategy domain.Strategy) error {
	if !strategy.IsValid() || strategy == domain.StrategyEscalate {
		return fmt.Errorf("%w: cannot force strategy %q", domain.ErrInvalidInput, strategy)
	}

	gap, err := o.graph.GetGap(ctx, gapID)
	if err != nil {
		return fmt.Errorf("get gap: %w", err)
	}
	if gap.Status.IsResolved() {
		return fmt.Errorf("%w: gap %s is already %s", domain.ErrInvalidInput, gapID, gap.Status)
	}

	if gap.Status.IsTerminal() {
		gap.Status = domain.GapRequiresRetry
		gap.UpdatedAt = o.now()
		gap.AppendNote("retry forced with " + string(strategy))
		if _, err := o.graph.UpsertGap(ctx, gap); err != nil {
			return fmt.Errorf("reopen gap: %w", err)
		}
		recordTransition(string(gap.Status))
	}

	o.mu.Lock()
	if o.running && o.state != nil {
		o.state.Forced[gapID] = strategy
	} else {
		o.pending[gapID] = strategy
	}
	o.mu.Unlock()

	// Persist the request so a run in another process picks it up.
	if o.states != nil {
		latest, err := o.states.LatestState(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			latest = domain.NewAgentState("pending-"+uuid.NewString(), o.now())
		} else if err != nil {
			return fmt.Errorf("load latest state: %w", err)
		}
		if latest.Forced == nil {
			latest.Forced = make(map[string]domain.Strategy)
		}
		latest.Forced[gapID] = strategy
		latest.UpdatedAt = o.now()
		if err := o.states.SaveState(ctx, latest); err != nil {
			return fmt.Errorf("save forced strategy: %w", err)
		}
	}

	logger.Info("Forced %s for gap %s", strategy, gapID)
	return nil
}
