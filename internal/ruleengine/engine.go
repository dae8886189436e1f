// Package ruleengine implements the deterministic rule matcher: standalone
// rules, multi-step flow rules gated by step, wildcard choice resolution,
// and safe {identifier} template rendering.
//
// An Engine is built once from a snapshot of active rules and is immutable
// thereafter (§9 Design Notes: rule edits rebuild and atomically swap).
package ruleengine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vidinsight-tech/queryon/internal/model"
)

const (
	regexPrefix = "r:"
	wildcard    = "*"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Match is the result of a successful rule match: the matched rule, its
// rendered response, and an optional flow transition.
type Match struct {
	Rule            *model.Rule
	RenderedAnswer  string
	NextFlowContext *model.FlowContext
}

// Engine matches user queries against a priority-ordered, immutable snapshot
// of rules.
type Engine struct {
	rules    []*model.Rule
	compiled map[string]*regexp.Regexp
}

// New builds an Engine from a rule snapshot, pre-sorting by priority
// descending (stable, so equal-priority ties keep insertion order) and
// pre-compiling every "r:" regex trigger.
func New(rules []*model.Rule) *Engine {
	sorted := make([]*model.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	compiled := make(map[string]*regexp.Regexp)
	for _, rule := range sorted {
		for _, pat := range rule.TriggerPatterns {
			if !strings.HasPrefix(pat, regexPrefix) {
				continue
			}
			expr := strings.TrimPrefix(pat, regexPrefix)
			if re, err := regexp.Compile("(?i)" + expr); err == nil {
				compiled[pat] = re
			}
		}
	}

	return &Engine{rules: sorted, compiled: compiled}
}

// Rules returns a copy of the engine's rule snapshot, in match order.
func (e *Engine) Rules() []*model.Rule {
	out := make([]*model.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Keywords returns every active rule's plain-text (non-regex, non-wildcard)
// trigger, lowercased — consumed by the classifier cascade's Layer 1.
func (e *Engine) Keywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rule := range e.rules {
		if !rule.IsActive {
			continue
		}
		for _, pat := range rule.TriggerPatterns {
			if strings.HasPrefix(pat, regexPrefix) || pat == wildcard {
				continue
			}
			lower := strings.ToLower(pat)
			if !seen[lower] {
				seen[lower] = true
				out = append(out, lower)
			}
		}
	}
	return out
}

// Match runs the deterministic matching order described in §4.1: when a
// FlowContext is active, choice resolution, then flow rules, then standalone
// rules (so escape hatches like "iptal"/"cancel" work mid-flow); otherwise
// standalone rules then flow-entry rules.
func (e *Engine) Match(query string, flowCtx *model.FlowContext) *Match {
	if !flowCtx.IsEmpty() {
		if m := e.matchFlowEntryByChoice(query, flowCtx); m != nil {
			return m
		}
		if m := e.matchFlowRules(query, flowCtx); m != nil {
			return m
		}
		return e.matchStandaloneRules(query)
	}

	if m := e.matchStandaloneRules(query); m != nil {
		return m
	}
	return e.matchFlowEntryRules(query)
}

func (e *Engine) matchStandaloneRules(query string) *Match {
	qLower := strings.ToLower(query)
	for _, rule := range e.rules {
		if !rule.IsActive || rule.IsFlowBound() {
			continue
		}
		if e.patternsHit(rule, query, qLower) {
			return &Match{Rule: rule, RenderedAnswer: e.render(rule)}
		}
	}
	return nil
}

func (e *Engine) matchFlowEntryRules(query string) *Match {
	qLower := strings.ToLower(query)
	for _, rule := range e.rules {
		if !rule.IsActive || !rule.IsFlowBound() || rule.RequiredStep != nil {
			continue
		}
		if e.patternsHit(rule, query, qLower) {
			return &Match{
				Rule:            rule,
				RenderedAnswer:  e.render(rule),
				NextFlowContext: e.buildNextCtx(rule, query, nil),
			}
		}
	}
	return nil
}

func (e *Engine) matchFlowRules(query string, flowCtx *model.FlowContext) *Match {
	qLower := strings.ToLower(query)
	for _, rule := range e.rules {
		if !rule.IsActive || !rule.IsFlowBound() {
			continue
		}
		if rule.FlowID == nil || *rule.FlowID != flowCtx.FlowID {
			continue
		}
		if rule.RequiredStep == nil || *rule.RequiredStep != flowCtx.CurrentStep {
			continue
		}
		if e.patternsHit(rule, query, qLower) {
			return &Match{
				Rule:            rule,
				RenderedAnswer:  e.render(rule),
				NextFlowContext: e.buildNextCtx(rule, query, flowCtx),
			}
		}
	}
	return nil
}

// matchFlowEntryByChoice resolves the current step's next_steps map against
// the user's raw answer. Short (<=2 char) choice keys require whole-word
// equality to avoid collisions like "a" matching inside "merhaba"; longer
// keys use substring matching. "*" in next_steps is a catch-all.
func (e *Engine) matchFlowEntryByChoice(query string, flowCtx *model.FlowContext) *Match {
	var parents []*model.Rule
	for _, rule := range e.rules {
		if !rule.IsActive || rule.FlowID == nil || *rule.FlowID != flowCtx.FlowID {
			continue
		}
		if rule.StepKey == nil || *rule.StepKey != flowCtx.CurrentStep {
			continue
		}
		if len(rule.NextSteps) == 0 {
			continue
		}
		parents = append(parents, rule)
	}
	if len(parents) == 0 {
		return nil
	}

	qLower := strings.ToLower(strings.TrimSpace(query))
	qWords := make(map[string]bool)
	for _, w := range strings.Fields(qLower) {
		qWords[w] = true
	}

	for _, parent := range parents {
		var wildcardTarget string
		hasWildcard := false
		for choice, target := range parent.NextSteps {
			if choice == wildcard {
				wildcardTarget, hasWildcard = target, true
				continue
			}
			if choiceMatches(choice, qLower, qWords) {
				return e.resolveChoiceTarget(query, flowCtx, parent, target)
			}
		}
		if hasWildcard {
			return e.resolveChoiceTarget(query, flowCtx, parent, wildcardTarget)
		}
	}
	return nil
}

func choiceMatches(choice, qLower string, qWords map[string]bool) bool {
	cLower := strings.ToLower(choice)
	if len(cLower) <= 2 {
		return qWords[cLower] || cLower == qLower
	}
	return strings.Contains(qLower, cLower)
}

func (e *Engine) resolveChoiceTarget(query string, flowCtx *model.FlowContext, parent *model.Rule, targetStep string) *Match {
	target := e.findStepRule(flowCtx.FlowID, targetStep)
	if target == nil {
		return nil
	}

	newSelections := make(map[string][]string, len(flowCtx.Selections)+1)
	for k, v := range flowCtx.Selections {
		newSelections[k] = v
	}
	if flowCtx.CurrentStep != "" {
		newSelections[flowCtx.CurrentStep] = append(append([]string{}, newSelections[flowCtx.CurrentStep]...), strings.TrimSpace(query))
	}

	var newCtx *model.FlowContext
	if len(target.NextSteps) > 0 {
		data := make(map[string]string, len(flowCtx.Data)+1)
		for k, v := range flowCtx.Data {
			data[k] = v
		}
		data["last_query"] = strings.TrimSpace(query)
		newCtx = &model.FlowContext{
			FlowID:      flowCtx.FlowID,
			CurrentStep: targetStep,
			Data:        data,
			Selections:  newSelections,
		}
	}
	return &Match{
		Rule:            target,
		RenderedAnswer:  e.render(target),
		NextFlowContext: newCtx,
	}
}

func (e *Engine) findStepRule(flowID, stepKey string) *model.Rule {
	for _, rule := range e.rules {
		if rule.IsActive && rule.FlowID != nil && *rule.FlowID == flowID && rule.StepKey != nil && *rule.StepKey == stepKey {
			return rule
		}
	}
	return nil
}

func (e *Engine) patternsHit(rule *model.Rule, query, qLower string) bool {
	for _, pat := range rule.TriggerPatterns {
		switch {
		case pat == wildcard:
			if strings.TrimSpace(query) != "" {
				return true
			}
		case strings.HasPrefix(pat, regexPrefix):
			if re, ok := e.compiled[pat]; ok && re.MatchString(query) {
				return true
			}
		default:
			if strings.Contains(qLower, strings.ToLower(pat)) {
				return true
			}
		}
	}
	return false
}

// buildNextCtx produces the flow transition contract: current_step advances
// to rule.StepKey, the previous step's selection is appended, prior data is
// preserved. A rule with no next_steps terminates the flow (nil context).
func (e *Engine) buildNextCtx(rule *model.Rule, query string, prevCtx *model.FlowContext) *model.FlowContext {
	if !rule.IsFlowBound() || len(rule.NextSteps) == 0 {
		return nil
	}

	selections := make(map[string][]string)
	data := make(map[string]string)
	if prevCtx != nil {
		for k, v := range prevCtx.Selections {
			selections[k] = v
		}
		for k, v := range prevCtx.Data {
			data[k] = v
		}
		if prevCtx.CurrentStep != "" {
			selections[prevCtx.CurrentStep] = append(append([]string{}, selections[prevCtx.CurrentStep]...), strings.TrimSpace(query))
		}
	}
	data["last_query"] = query

	return &model.FlowContext{
		FlowID:      *rule.FlowID,
		CurrentStep: *rule.StepKey,
		Data:        data,
		Selections:  selections,
	}
}

// render substitutes only {identifier} placeholders from rule.Variables.
// Unknown placeholders remain literal; there is no general format-string
// evaluation, which would allow injection via e.g. {0.__class__}.
func (e *Engine) render(rule *model.Rule) string {
	if len(rule.Variables) == 0 {
		return rule.ResponseTemplate
	}
	return placeholderPattern.ReplaceAllStringFunc(rule.ResponseTemplate, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := rule.Variables[key]; ok {
			return v
		}
		return m
	})
}

// Render exposes template rendering for a single rule outside of a match,
// e.g. for admin preview tooling.
func Render(rule *model.Rule) string {
	return (&Engine{}).render(rule)
}
