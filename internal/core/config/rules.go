package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guiyumin/vskip/internal/core/store"
)

// ErrEmptyRule is returned when a rule lacks a keyword or a label.
var ErrEmptyRule = errors.New("rule needs both a match keyword and a name")

// RuleKind selects one of the two custom rule lists.
type RuleKind string

const (
	RuleTag    RuleKind = "tag"
	RuleSeries RuleKind = "series"
)

// StoreKey returns the store key holding rules of this kind.
func (k RuleKind) StoreKey() string {
	if k == RuleSeries {
		return KeyCustomSeriesRules
	}
	return KeyCustomTagRules
}

// ParseRuleKind accepts "tag" or "series".
func ParseRuleKind(s string) (RuleKind, bool) {
	switch RuleKind(strings.ToLower(s)) {
	case RuleTag:
		return RuleTag, true
	case RuleSeries:
		return RuleSeries, true
	}
	return "", false
}

// UpsertRule adds r, replacing in place an existing rule with the same keyword.
// It reports whether an existing rule was overwritten.
func UpsertRule(rules []Rule, r Rule) ([]Rule, bool, error) {
	r.Match = strings.TrimSpace(r.Match)
	r.Name = strings.TrimSpace(r.Name)
	if r.Match == "" || r.Name == "" {
		return rules, false, ErrEmptyRule
	}

	out := append([]Rule(nil), rules...)
	for i := range out {
		if out[i].Match == r.Match {
			out[i] = r
			return out, true, nil
		}
	}
	return append(out, r), false, nil
}

// DeleteRule removes the rule at index; out-of-range indexes are a no-op.
func DeleteRule(rules []Rule, index int) ([]Rule, bool) {
	if index < 0 || index >= len(rules) {
		return rules, false
	}
	out := append([]Rule(nil), rules[:index]...)
	return append(out, rules[index+1:]...), true
}

// MatchRule returns the label of the first rule whose keyword occurs in any of
// the haystacks.
func MatchRule(rules []Rule, haystacks ...string) (string, bool) {
	for _, r := range rules {
		if r.Match == "" {
			continue
		}
		for _, h := range haystacks {
			if strings.Contains(h, r.Match) {
				return r.Name, true
			}
		}
	}
	return "", false
}

// Rules returns the list of kind held by c.
func (c Config) Rules(kind RuleKind) []Rule {
	if kind == RuleSeries {
		return c.CustomSeriesRules
	}
	return c.CustomTagRules
}

// AddRule upserts r into the stored list of kind.
func AddRule(ctx context.Context, s store.Store, kind RuleKind, r Rule) (bool, error) {
	cfg, err := Load(ctx, s)
	if err != nil {
		return false, err
	}
	next, replaced, err := UpsertRule(cfg.Rules(kind), r)
	if err != nil {
		return false, err
	}
	return replaced, saveRules(ctx, s, kind, next)
}

// RemoveRule deletes the stored rule of kind at index. It reports whether
// the index existed.
func RemoveRule(ctx context.Context, s store.Store, kind RuleKind, index int) (bool, error) {
	cfg, err := Load(ctx, s)
	if err != nil {
		return false, err
	}
	next, ok := DeleteRule(cfg.Rules(kind), index)
	if !ok {
		return false, nil
	}
	return true, saveRules(ctx, s, kind, next)
}

func saveRules(ctx context.Context, s store.Store, kind RuleKind, rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	if err := s.Set(ctx, store.MustEncode(map[string]any{kind.StoreKey(): rules})); err != nil {
		return fmt.Errorf("failed to save %s rules: %w", kind, err)
	}
	return nil
}
