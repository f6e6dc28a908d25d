// Package guardrails implements the post-scoring exclusion rules.
// Each rule is a named, independently togglable predicate; failing
// funds keep their score and are retained in the audit output with
// every failure tag, never silently dropped.
package guardrails

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"fundrank/internal/features"
	"fundrank/internal/fund"
	"fundrank/internal/returns"
)

// Canonical guardrail names. These appear verbatim in the audit output
// and in configuration files.
const (
	NameMinOfferPerIssuer = "min_offer_per_issuer"
	NameMinSharpe12M      = "min_sharpe_12m"
	NameMinSharpe3M       = "min_sharpe_3m"
	NameNoFundsWoManager  = "no_funds_wo_manager"
	NameOnlyActiveFunds   = "include_only_active_funds"
	NameNoExtremeReturns  = "no_extreme_returns"
	NameMinDataCoverage   = "min_data_coverage"
)

// Inputs bundles the tables the rules read. All of it is treated as
// read-only.
type Inputs struct {
	Rows            map[fund.CNPJ]features.Row
	Characteristics map[fund.CNPJ]fund.Characteristics
	Monthly         []returns.MonthlyReturn
}

// View is the precomputed population context handed to each rule:
// per-manager fund counts, the population's latest filing period, and
// per-fund return extremes. Building it once keeps every rule O(1)
// per fund.
type View struct {
	in           *Inputs
	managerFunds map[string]int
	latestPeriod fund.Period
	fundLatest   map[fund.CNPJ]fund.Period
	maxAbsReturn map[fund.CNPJ]fund.Value
}

// NewView precomputes the population context for one run.
func NewView(in *Inputs) *View {
	v := &View{
		in:           in,
		managerFunds: make(map[string]int),
		fundLatest:   make(map[fund.CNPJ]fund.Period),
		maxAbsReturn: make(map[fund.CNPJ]fund.Value),
	}
	for _, c := range in.Characteristics {
		if c.HasManager() {
			v.managerFunds[c.Manager]++
		}
	}
	for _, mr := range in.Monthly {
		if mr.Period > v.fundLatest[mr.FundID] {
			v.fundLatest[mr.FundID] = mr.Period
		}
		if mr.Period > v.latestPeriod {
			v.latestPeriod = mr.Period
		}
		if !mr.Return.Valid {
			continue
		}
		abs := math.Abs(mr.Return.Float64)
		cur := v.maxAbsReturn[mr.FundID]
		if !cur.Valid || abs > cur.Float64 {
			v.maxAbsReturn[mr.FundID] = fund.Some(abs)
		}
	}
	return v
}

func (v *View) row(id fund.CNPJ) features.Row {
	return v.in.Rows[id]
}

func (v *View) characteristics(id fund.CNPJ) (fund.Characteristics, bool) {
	c, ok := v.in.Characteristics[id]
	return c, ok
}

// Rule is one guardrail: a stable name plus a pass predicate evaluated
// against the population view. Rules are built by the New* constructors
// so that bad configuration fails before any fund is evaluated.
type Rule struct {
	name string
	pass func(v *View, id fund.CNPJ) bool
}

// Name returns the rule's canonical name.
func (r Rule) Name() string { return r.name }

// NewManagerFundCount builds the minimum distinct-fund-count-per-manager
// rule. A fund whose manager runs fewer than min funds in the current
// population fails; so does a fund with no manager on record.
func NewManagerFundCount(min int) (Rule, error) {
	if min < 1 {
		return Rule{}, fmt.Errorf("guardrail %s: minimum fund count %d must be >= 1", NameMinOfferPerIssuer, min)
	}
	return Rule{
		name: NameMinOfferPerIssuer,
		pass: func(v *View, id fund.CNPJ) bool {
			c, ok := v.characteristics(id)
			if !ok || !c.HasManager() {
				return false
			}
			return v.managerFunds[c.Manager] >= min
		},
	}, nil
}

// NewMetricFloor builds a rule requiring the named feature or auxiliary
// metric to be non-null and >= min. A null cell fails: a fund whose
// metric cannot be computed has not demonstrated the required minimum.
func NewMetricFloor(name, metric string, min float64) (Rule, error) {
	if !features.IsKnownMetric(metric) {
		return Rule{}, fmt.Errorf("guardrail %s: unknown metric %q", name, metric)
	}
	return Rule{
		name: name,
		pass: func(v *View, id fund.CNPJ) bool {
			cell := v.row(id).Metric(metric)
			return cell.Valid && cell.Float64 >= min
		},
	}, nil
}

// NewRequireManager builds the rule excluding funds with no assigned
// manager.
func NewRequireManager() Rule {
	return Rule{
		name: NameNoFundsWoManager,
		pass: func(v *View, id fund.CNPJ) bool {
			c, ok := v.characteristics(id)
			return ok && c.HasManager()
		},
	}
}

// NewRequireActive builds the data-recency rule: the fund must have a
// filing in the population's latest period.
func NewRequireActive() Rule {
	return Rule{
		name: NameOnlyActiveFunds,
		pass: func(v *View, id fund.CNPJ) bool {
			latest, ok := v.fundLatest[id]
			return ok && latest == v.latestPeriod
		},
	}
}

// NewExtremeReturns builds the implausible-return rule: every observed
// monthly return magnitude must stay within maxAbs. Funds with no
// observed returns pass; the coverage rule is the place to catch those.
func NewExtremeReturns(maxAbs float64) (Rule, error) {
	if maxAbs <= 0 {
		return Rule{}, fmt.Errorf("guardrail %s: threshold %.4f must be positive", NameNoExtremeReturns, maxAbs)
	}
	return Rule{
		name: NameNoExtremeReturns,
		pass: func(v *View, id fund.CNPJ) bool {
			worst := v.maxAbsReturn[id]
			return !worst.Valid || worst.Float64 <= maxAbs
		},
	}, nil
}

// Result is the audit record for one fund under one profile.
type Result struct {
	FundID           fund.CNPJ `json:"cnpj"`
	Profile          string    `json:"profile"`
	Passed           bool      `json:"passed"`
	FailedGuardrails []string  `json:"failed_guardrails,omitempty"`
}

// Filter evaluates an ordered rule set over the population.
type Filter struct {
	rules  []Rule
	logger *slog.Logger
}

// NewFilter builds a filter from an ordered rule set. Rule order fixes
// the order of failure tags in the audit output. Duplicate names are
// rejected.
func NewFilter(rules []Rule, logger *slog.Logger) (*Filter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.pass == nil {
			return nil, fmt.Errorf("guardrail %s: nil predicate", r.name)
		}
		if _, dup := seen[r.name]; dup {
			return nil, fmt.Errorf("guardrail %s: registered twice", r.name)
		}
		seen[r.name] = struct{}{}
	}
	return &Filter{rules: rules, logger: logger}, nil
}

// Names returns the active rule names in evaluation order.
func (f *Filter) Names() []string {
	names := make([]string, len(f.rules))
	for i, r := range f.rules {
		names[i] = r.name
	}
	return names
}

// Evaluate runs every rule against every fund in the population and
// returns the failed-rule names per fund, in rule order. A fund absent
// from the map passed every rule.
func (f *Filter) Evaluate(in *Inputs) map[fund.CNPJ][]string {
	v := NewView(in)

	failures := make(map[fund.CNPJ][]string)
	for id := range in.Rows {
		for _, r := range f.rules {
			if !r.pass(v, id) {
				failures[id] = append(failures[id], r.name)
			}
		}
	}

	f.logger.Info("evaluated guardrails",
		"rules", len(f.rules),
		"funds", len(in.Rows),
		"funds_failing", len(failures),
	)
	return failures
}

// Mark joins one profile's score table with the failure map into audit
// records, one per scored fund, ordered by fund id.
func Mark(profile string, fundIDs []fund.CNPJ, failures map[fund.CNPJ][]string) []Result {
	out := make([]Result, 0, len(fundIDs))
	for _, id := range fundIDs {
		failed := failures[id]
		out = append(out, Result{
			FundID:           id,
			Profile:          profile,
			Passed:           len(failed) == 0,
			FailedGuardrails: failed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FundID < out[j].FundID })
	return out
}
