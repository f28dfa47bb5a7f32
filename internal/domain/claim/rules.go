package claim

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.yaml.in/yaml/v3"
)

type RewardMode string

const (
	// ModeFlat pays a fixed coin amount regardless of order value.
	ModeFlat RewardMode = "flat"
	// ModeProportional pays floor(orderAmount) coins.
	ModeProportional RewardMode = "proportional"
)

// Rule is the reward and maturity policy of one claim category.
type Rule struct {
	Category     string     `yaml:"category"`
	Mode         RewardMode `yaml:"mode"`
	FlatCoins    int64      `yaml:"flat_coins"`
	MaturityDays int        `yaml:"maturity_days"`
}

// RuleTable resolves a category to its reward and maturity window.
type RuleTable struct {
	rules map[string]Rule
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules mirrors the categories the product launched with.
func DefaultRules() *RuleTable {
	t, _ := NewRuleTable([]Rule{
		{Category: "standard", Mode: ModeProportional, MaturityDays: 60},
		{Category: "subscription", Mode: ModeProportional, MaturityDays: 30},
		{Category: "partner", Mode: ModeProportional, MaturityDays: 6},
		{Category: "bill-pay", Mode: ModeFlat, FlatCoins: 150, MaturityDays: 3},
	})
	return t
}

func NewRuleTable(rules []Rule) (*RuleTable, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidRules)
	}

	t := &RuleTable{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		key := normalizeCategory(r.Category)
		if key == "" {
			return nil, fmt.Errorf("%w: empty category", ErrInvalidRules)
		}
		if _, dup := t.rules[key]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidRules, key)
		}
		if r.MaturityDays < 0 {
			return nil, fmt.Errorf("%w: %q has negative maturity_days", ErrInvalidRules, key)
		}
		switch r.Mode {
		case ModeFlat:
			if r.FlatCoins <= 0 {
				return nil, fmt.Errorf("%w: flat category %q needs flat_coins > 0", ErrInvalidRules, key)
			}
		case ModeProportional:
		default:
			return nil, fmt.Errorf("%w: %q has unknown mode %q", ErrInvalidRules, key, r.Mode)
		}
		r.Category = key
		t.rules[key] = r
	}
	return t, nil
}

// LoadRules reads a YAML rule table:
//
//	rules:
//	  - category: bill-pay
//	    mode: flat
//	    flat_coins: 150
//	    maturity_days: 3
func LoadRules(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return NewRuleTable(f.Rules)
}

// RewardFor returns the coins and maturity window for an order in category.
func (t *RuleTable) RewardFor(category string, orderAmount decimal.Decimal) (int64, int, error) {
	r, ok := t.rules[normalizeCategory(category)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	switch r.Mode {
	case ModeFlat:
		return r.FlatCoins, r.MaturityDays, nil
	default:
		coins := orderAmount.Floor().BigInt()
		if coins.Sign() < 0 || !coins.IsInt64() {
			return 0, 0, fmt.Errorf("%w: order amount %s out of range", ErrInvalidClaim, orderAmount)
		}
		return coins.Int64(), r.MaturityDays, nil
	}
}

// Categories lists the configured categories in name order.
func (t *RuleTable) Categories() []string {
	out := make([]string, 0, len(t.rules))
	for k := range t.rules {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
