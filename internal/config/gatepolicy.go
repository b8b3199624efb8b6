package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

// GatePolicy classifies topics by sensitivity and maps domains onto the
// topics that gate them. Loaded from YAML when GATE_POLICY_PATH is set,
// otherwise the compiled-in defaults apply.
type GatePolicy struct {
	Topics []TopicPolicy `yaml:"topics"`
	// Domains where the gate suppresses generation outright while the user
	// is emotionally vulnerable or fragile.
	AutonomySensitiveDomains []types.Domain `yaml:"autonomy_sensitive_domains"`
}

type TopicPolicy struct {
	Name        string         `yaml:"name"`
	Sensitivity string         `yaml:"sensitivity"` // low | medium | high
	Domains     []types.Domain `yaml:"domains"`
}

const (
	SensitivityLow    = "low"
	SensitivityMedium = "medium"
	SensitivityHigh   = "high"
)

func DefaultGatePolicy() *GatePolicy {
	return &GatePolicy{
		Topics: []TopicPolicy{
			{Name: "general_patterns", Sensitivity: SensitivityLow, Domains: []types.Domain{types.DomainPreference, types.DomainGoal, types.DomainEngagement, types.DomainRoutine}},
			{Name: "health_insights", Sensitivity: SensitivityMedium, Domains: []types.Domain{types.DomainHealth, types.DomainSleep}},
			{Name: "social_patterns", Sensitivity: SensitivityMedium, Domains: []types.Domain{types.DomainSocial, types.DomainCommunication}},
			{Name: "monetization", Sensitivity: SensitivityHigh, Domains: []types.Domain{types.DomainFinancial}},
			{Name: "autonomy_changes", Sensitivity: SensitivityHigh, Domains: []types.Domain{types.DomainAutonomy}},
		},
		AutonomySensitiveDomains: []types.Domain{types.DomainFinancial, types.DomainAutonomy},
	}
}

func LoadGatePolicy(path string) (*GatePolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultGatePolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gate policy: %w", err)
	}
	policy := &GatePolicy{}
	if err := yaml.Unmarshal(raw, policy); err != nil {
		return nil, fmt.Errorf("parse gate policy: %w", err)
	}
	if len(policy.Topics) == 0 {
		return nil, fmt.Errorf("gate policy has no topics")
	}
	for _, t := range policy.Topics {
		switch t.Sensitivity {
		case SensitivityLow, SensitivityMedium, SensitivityHigh:
		default:
			return nil, fmt.Errorf("topic %q has unknown sensitivity %q", t.Name, t.Sensitivity)
		}
	}
	return policy, nil
}

// TopicFor returns the gating topic for a domain. Unmapped domains fall back
// to a high-sensitivity pseudo-topic: unknown territory is protected, not
// open.
func (p *GatePolicy) TopicFor(domain types.Domain) TopicPolicy {
	for _, t := range p.Topics {
		for _, d := range t.Domains {
			if d == domain {
				return t
			}
		}
	}
	return TopicPolicy{Name: "unclassified", Sensitivity: SensitivityHigh, Domains: []types.Domain{domain}}
}

func (p *GatePolicy) IsAutonomySensitive(domain types.Domain) bool {
	for _, d := range p.AutonomySensitiveDomains {
		if d == domain {
			return true
		}
	}
	return false
}
