// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The orchestration loop is built from four parts:
//
//   - RuleEngine applies gap rules to a view of the graph
//   - CompletenessEvaluator turns rule output into the gap ledger
//   - StrategySelector picks the next action for one gap
//   - Orchestrator sequences scanning, analysis and resolution
//
// Services depend on the domain and the ports only; adapters are injected.
package services
