package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECISION ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// EngineConfig configures an Engine.
type EngineConfig struct {
	Grades   progress.GradeScale
	Cadence  CadencePolicy
	Selector SelectorOptions
}

// DefaultEngineConfig returns the standard configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Grades:   progress.DefaultGradeScale(),
		Cadence:  DefaultCadencePolicy(),
		Selector: DefaultSelectorOptions(),
	}
}

// Engine evaluates one student per call. It holds no per-student state and
// is safe for concurrent use.
type Engine struct {
	classifier *Classifier
	resolver   *Resolver
	selector   *Selector
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Cadence.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		classifier: NewClassifier(cfg.Cadence, cfg.Grades),
		resolver:   NewResolver(cfg.Grades),
		selector:   NewSelector(cfg.Grades, cfg.Selector),
	}, nil
}

// Classifier exposes the urgency classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Resolver exposes the checkpoint resolver.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Evaluate decides whether the student gets a message on this run.
//
// A student who never received a welcome message gets one first. A blocked
// student gets the blocked notice once and nothing afterwards. Everyone else
// is gated by the cadence for their urgency tier and then messaged about the
// first unmet checkpoint.
//
// The only error is a precondition failure in the snapshot.
func (e *Engine) Evaluate(s progress.Snapshot, h *HistoryIndex) (Decision, error) {
	if err := s.Validate(); err != nil {
		return Decision{}, err
	}
	if h == nil {
		h = EmptyHistory()
	}

	u := e.classifier.Classify(s)

	if !h.HasFamily(FamilyWelcome) {
		return Decision{
			State:      StateAwaitingWelcome,
			Outcome:    OutcomeSent,
			Reason:     ReasonWelcome,
			Urgency:    u,
			Descriptor: e.selector.Welcome(s, u),
		}, nil
	}

	if s.Blocked {
		d, ok := e.selector.Blocked(s, u, h)
		if !ok {
			return Decision{State: StateBlocked, Outcome: OutcomeSuppressed, Reason: ReasonBlockedAlready, Urgency: u}, nil
		}
		return Decision{State: StateBlocked, Outcome: OutcomeSent, Reason: ReasonBlockedNotice, Urgency: u, Descriptor: d}, nil
	}

	if e.classifier.Gate(u, s) {
		return Decision{State: StateNormalFlow, Outcome: OutcomeSuppressed, Reason: ReasonIntervalNotMet, Urgency: u}, nil
	}

	cp, ok := e.resolver.Resolve(s, h)
	if !ok {
		return Decision{State: StateTerminal, Outcome: OutcomeSuppressed, Reason: ReasonNothingToResolve, Urgency: u}, nil
	}

	d, ok := e.selector.Select(cp, s, u, h)
	if !ok {
		return Decision{State: StateNormalFlow, Outcome: OutcomeSuppressed, Reason: ReasonNoVariant, Urgency: u, Checkpoint: cp}, nil
	}
	return Decision{State: StateNormalFlow, Outcome: OutcomeSent, Reason: ReasonCheckpoint, Urgency: u, Checkpoint: cp, Descriptor: d}, nil
}
