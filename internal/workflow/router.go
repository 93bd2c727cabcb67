package workflow

import (
	"errors"
	"sort"
	"strings"
)

// ErrStaleFeedback is returned when feedback arrives while no review
// is outstanding. It is surfaced to the user, never silently dropped
// or applied to a later checkpoint.
var ErrStaleFeedback = errors.New("workflow: no review is currently pending")

type DecisionKind int

const (
	DecisionUnclassified DecisionKind = iota
	DecisionRetry
	DecisionAdvance
	DecisionTerminate
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRetry:
		return "retry"
	case DecisionAdvance:
		return "advance"
	case DecisionTerminate:
		return "terminate"
	default:
		return "unclassified"
	}
}

// Decision is the outcome of classifying feedback against the current
// checkpoint. RetryExecutor is set only for DecisionRetry.
type Decision struct {
	Kind          DecisionKind
	RetryExecutor string
}

// retryRule binds one retry keyword to its executor. Rules are kept
// in a slice, longest keyword first, so matching never depends on map
// iteration order.
type retryRule struct {
	keyword  string
	executor string
}

// Router classifies human feedback. It is a pure function of the
// pending checkpoint's intent table and the input: calling Route twice
// with the same state and input yields the same decision.
type Router struct {
	intents Intents
	retries map[Checkpoint][]retryRule
	// foreign holds, per checkpoint, the approval tokens of every
	// other checkpoint. Matching one of these means the user answered
	// the wrong review, which must re-prompt rather than advance.
	foreign map[Checkpoint][]string
}

func NewRouter(intents Intents) *Router {
	retries := make(map[Checkpoint][]retryRule)
	foreign := make(map[Checkpoint][]string)
	for cp, table := range intents.Tables {
		rules := make([]retryRule, 0, len(table.RetryKeywords))
		for kw, executor := range table.RetryKeywords {
			rules = append(rules, retryRule{keyword: strings.ToLower(kw), executor: executor})
		}
		// Longest keyword wins so "图片" is matched before "图";
		// lexicographic order breaks ties.
		sort.Slice(rules, func(i, j int) bool {
			if len(rules[i].keyword) != len(rules[j].keyword) {
				return len(rules[i].keyword) > len(rules[j].keyword)
			}
			return rules[i].keyword < rules[j].keyword
		})
		retries[cp] = rules
		for other, t := range intents.Tables {
			if other == cp {
				continue
			}
			foreign[cp] = append(foreign[cp], t.ApproveKeywords...)
			foreign[cp] = append(foreign[cp], t.ApprovePhrases...)
		}
	}
	return &Router{intents: intents, retries: retries, foreign: foreign}
}

func (r *Router) Route(state *State, input string) (Decision, error) {
	if state.PendingCheckpoint == CheckpointNone {
		return Decision{}, ErrStaleFeedback
	}
	table, ok := r.intents.Tables[state.PendingCheckpoint]
	if !ok {
		return Decision{}, ErrStaleFeedback
	}

	feedback := strings.ToLower(strings.TrimSpace(input))
	if feedback == "" {
		return Decision{Kind: DecisionUnclassified}, nil
	}

	// Targeted retries come first so that "这张图片不错但请换一张" is
	// routed to image regeneration rather than read as approval.
	for _, rule := range r.retries[state.PendingCheckpoint] {
		if strings.Contains(feedback, rule.keyword) {
			return Decision{Kind: DecisionRetry, RetryExecutor: rule.executor}, nil
		}
	}

	if matchesAny(feedback, table.ApprovePhrases) {
		return r.approvalDecision(state.PendingCheckpoint), nil
	}

	hasApprove := matchesAny(feedback, table.ApproveKeywords)
	hasNegation := matchesAny(feedback, table.Negations)
	if hasApprove && !hasNegation {
		return r.approvalDecision(state.PendingCheckpoint), nil
	}
	if hasNegation {
		// An approval keyword guarded by a negation ("不同意") is a
		// revision request.
		return Decision{Kind: DecisionRetry, RetryExecutor: table.RevisionExecutor}, nil
	}

	// Approval meant for a different checkpoint never advances this
	// one, and it is not a revision instruction either: re-prompt.
	if matchesAny(feedback, r.foreign[state.PendingCheckpoint]) {
		return Decision{Kind: DecisionUnclassified}, nil
	}

	// Everything else is a revision request for this checkpoint's
	// executor.
	return Decision{Kind: DecisionRetry, RetryExecutor: table.RevisionExecutor}, nil
}

func (r *Router) approvalDecision(cp Checkpoint) Decision {
	if cp == r.intents.FinalCheckpoint {
		return Decision{Kind: DecisionTerminate}
	}
	return Decision{Kind: DecisionAdvance}
}

func matchesAny(feedback string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(feedback, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
