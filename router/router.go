package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mealmind"
	"mealmind/model"
	"mealmind/retrieval"
	"mealmind/store"
)

// CheckpointStore persists conversation state between turns, keyed by thread.
// Implementations live in the checkpoint package.
type CheckpointStore interface {
	Save(ctx context.Context, threadID string, state *ConversationState) error
	Load(ctx context.Context, threadID string) (*ConversationState, bool, error)
}

// FeedbackExtractor mines durable preferences out of a user utterance. The
// feedback package provides the model-backed implementation.
type FeedbackExtractor interface {
	Extract(ctx context.Context, utterance string) ([]store.FeedbackItem, error)
}

// Router is the orchestrator: an explicit finite-state loop over the planner,
// the per-intent handlers, the tool loop and the aggregator. One Router
// serves many turns; all turn state lives in ConversationState.
type Router struct {
	planner     *Planner
	handlers    map[Action]Handler
	tools       *toolLoop
	store       store.Gateway
	checkpoints CheckpointStore
	feedback    FeedbackExtractor
	logger      mealmind.TurnLogger

	maxTurnIterations int
	historyWindow     int
}

type Opts struct {
	Gateway   model.Gateway
	Store     store.Gateway
	Retriever retrieval.Retriever

	// Optional.
	Checkpoints CheckpointStore
	Feedback    FeedbackExtractor
	Logger      mealmind.TurnLogger

	// Zero values take the config defaults.
	MaxTurnIterations int
	MaxToolIterations int
	HistoryWindow     int
}

func New(opts Opts) *Router {
	if opts.MaxTurnIterations <= 0 {
		opts.MaxTurnIterations = 25
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = defaultMaxToolAttempts
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 5
	}
	if opts.Logger == nil {
		opts.Logger = mealmind.NewNoOpTurnLogger()
	}
	return &Router{
		planner: NewPlanner(opts.Gateway, opts.HistoryWindow),
		handlers: map[Action]Handler{
			ActionMealRetrieval:     NewMealRetrievalHandler(opts.Store),
			ActionMealAdjustment:    NewMealAdjustmentHandler(opts.Gateway, opts.Store),
			ActionCalorieEstimation: NewCalorieEstimationHandler(opts.Gateway, opts.MaxToolIterations),
			ActionRecipeLookup:      NewRecipeLookupHandler(opts.Gateway),
			ActionGeneralChat:       NewGeneralChatHandler(opts.Gateway, opts.MaxToolIterations),
		},
		tools:             &toolLoop{retriever: opts.Retriever},
		store:             opts.Store,
		checkpoints:       opts.Checkpoints,
		feedback:          opts.Feedback,
		logger:            opts.Logger,
		maxTurnIterations: opts.MaxTurnIterations,
		historyWindow:     opts.HistoryWindow,
	}
}

// turnStats feeds the instrumented wrapper.
type turnStats struct {
	steps        int
	toolCalls    int
	dedupHits    int
	planLength   int
	capExhausted bool
}

// RunTurn executes one full user turn and returns the assistant response.
func (r *Router) RunTurn(ctx context.Context, in mealmind.TurnInput) (string, error) {
	response, _, err := r.runTurn(ctx, in)
	return response, err
}

func (r *Router) runTurn(ctx context.Context, in mealmind.TurnInput) (string, turnStats, error) {
	var stats turnStats
	if in.UserInput == "" {
		return "", stats, fmt.Errorf("empty user input")
	}

	state, err := r.loadState(ctx, in)
	if err != nil {
		return "", stats, err
	}
	r.loadContext(ctx, state)
	r.extractFeedback(ctx, state)

	state.BeginTurn(in.UserInput)

	response := ""
	node := NodePlanner
	for iter := 0; iter < r.maxTurnIterations && node != NodeDone; iter++ {
		switch node {
		case NodePlanner:
			if err := r.planner.Plan(ctx, state); err != nil {
				return "", stats, err
			}
			stats.planLength = len(state.Plan)
			node = r.route(state)

		case NodeToolLoop:
			before := len(state.ToolOutputs)
			pending := len(state.ToolCalls)
			r.tools.Run(ctx, state)
			stats.toolCalls += pending
			stats.dedupHits += countDedup(state.ToolOutputs[before:])
			node = state.ActiveNode
			if node == "" {
				node = NodePlanner
			}

		case NodeAggregate:
			response = aggregate(state)
			node = NodeDone

		default:
			node = r.runStep(ctx, state, node, &stats)
		}
	}

	// The iteration cap is a tripwire, not a response path: if it fires we
	// still answer from whatever the handlers produced.
	if node != NodeDone {
		slog.Warn("ROUTER: Turn iteration cap reached", "max", r.maxTurnIterations)
		stats.capExhausted = true
		response = aggregate(state)
	}

	state.ChatHistory = append(state.ChatHistory,
		mealmind.ChatMessage{Role: "user", Content: in.UserInput},
		mealmind.ChatMessage{Role: "assistant", Content: response},
	)
	r.saveState(ctx, in.ThreadID, state)
	if flusher, ok := r.logger.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			slog.Warn("ROUTER: Turn log flush failed", "error", err)
		}
	}

	return response, stats, nil
}

// runStep dispatches the current plan step to its handler and decides the
// next node: the tool loop when the handler parked calls, otherwise back to
// the planner for index advancement.
func (r *Router) runStep(ctx context.Context, state *ConversationState, node Node, stats *turnStats) Node {
	step, ok := state.CurrentStep()
	if !ok || nodeFor(step.Action) != node {
		// Stale active_node from a checkpoint, or an index that ran past
		// the plan. Route freshly rather than guessing.
		return r.route(state)
	}

	handler := r.handlers[step.Action]
	stats.steps++
	start := time.Now()
	err := handler.Handle(ctx, step, state)
	r.logStep(state, step, err)
	if err != nil {
		slog.Error("ROUTER: Handler failed", "action", step.Action, "error", err)
		return NodePlanner
	}
	slog.Debug("ROUTER: Step done", "action", step.Action, "duration", time.Since(start))

	if len(state.ToolCalls) > 0 {
		state.ActiveNode = node
		return NodeToolLoop
	}
	state.ActiveNode = ""
	return NodePlanner
}

// route picks the node for the current step, or aggregation once the index
// passes the end of the plan.
func (r *Router) route(state *ConversationState) Node {
	step, ok := state.CurrentStep()
	if !ok {
		return NodeAggregate
	}
	return nodeFor(step.Action)
}

// loadState restores the thread's state from the checkpoint store, or starts
// a fresh one. Checkpoint failures degrade to a fresh state; a broken
// checkpoint backend must not take the assistant down.
func (r *Router) loadState(ctx context.Context, in mealmind.TurnInput) (*ConversationState, error) {
	if r.checkpoints != nil && in.ThreadID != "" {
		state, found, err := r.checkpoints.Load(ctx, in.ThreadID)
		if err != nil {
			slog.Error("ROUTER: Checkpoint load failed, starting fresh", "thread_id", in.ThreadID, "error", err)
		} else if found {
			state.UserID = in.UserID
			return state, nil
		}
	}
	return &ConversationState{UserID: in.UserID}, nil
}

func (r *Router) saveState(ctx context.Context, threadID string, state *ConversationState) {
	if r.checkpoints == nil || threadID == "" {
		return
	}
	if err := r.checkpoints.Save(ctx, threadID, state); err != nil {
		slog.Error("ROUTER: Checkpoint save failed", "thread_id", threadID, "error", err)
	}
}

// loadContext refreshes the read-only user context at the start of every
// turn. Each lookup degrades independently: a missing profile still leaves
// preferences and inventory usable.
func (r *Router) loadContext(ctx context.Context, state *ConversationState) {
	if profile, err := r.store.GetUserProfile(ctx, state.UserID); err != nil {
		slog.Warn("ROUTER: Profile unavailable", "user_id", state.UserID, "error", err)
	} else {
		state.Profile = profile
	}
	if prefs, err := r.store.GetUserPreferences(ctx, state.UserID); err != nil {
		slog.Warn("ROUTER: Preferences unavailable", "user_id", state.UserID, "error", err)
	} else {
		state.Preferences = prefs
	}
	if inv, err := r.store.GetInventorySummary(ctx, state.UserID); err != nil {
		slog.Warn("ROUTER: Inventory unavailable", "user_id", state.UserID, "error", err)
	} else {
		state.InventorySummary = inv
	}
	if plan, err := r.store.GetActiveMealPlanSummary(ctx, state.UserID); err != nil {
		slog.Warn("ROUTER: Meal plan summary unavailable", "user_id", state.UserID, "error", err)
	} else {
		state.MealPlanSummary = plan
	}
}

// extractFeedback captures durable likes and dislikes before routing. Purely
// additive; failures are logged and the turn continues.
func (r *Router) extractFeedback(ctx context.Context, state *ConversationState) {
	if r.feedback == nil {
		return
	}
	items, err := r.feedback.Extract(ctx, state.UserInput)
	if err != nil {
		slog.Warn("ROUTER: Feedback extraction failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	if err := r.store.SaveFeedback(ctx, state.UserID, items); err != nil {
		slog.Warn("ROUTER: Feedback save failed", "error", err)
		return
	}
	for _, it := range items {
		applyFeedback(&state.Preferences, it)
	}
}

func applyFeedback(prefs *store.Preferences, it store.FeedbackItem) {
	switch it.Type {
	case "like":
		prefs.Likes = append(prefs.Likes, it.Entity)
	case "dislike":
		prefs.Dislikes = append(prefs.Dislikes, it.Entity)
	case "cuisine":
		prefs.Cuisines = append(prefs.Cuisines, it.Entity)
	case "dietary":
		prefs.Dietary = append(prefs.Dietary, it.Entity)
	}
}

func (r *Router) logStep(state *ConversationState, step Step, err error) {
	entry := mealmind.StepLog{
		StepIndex: state.CurrentStepIndex,
		Action:    string(step.Action),
		Timestamp: time.Now().UTC(),
	}
	for _, call := range state.ToolCalls {
		entry.ToolCalls = append(entry.ToolCalls, mealmind.ToolCallLog{Tool: call.Tool, Query: call.Query})
	}
	if err != nil {
		entry.Error = err.Error()
	}
	r.logger.LogStep(entry)
}

func countDedup(outputs []ToolOutput) int {
	n := 0
	for _, out := range outputs {
		if out.Result == AlreadySearchedResult {
			n++
		}
	}
	return n
}
