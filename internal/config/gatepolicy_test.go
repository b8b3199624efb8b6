package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

func TestTopicForFallsBackToProtected(t *testing.T) {
	policy := DefaultGatePolicy()

	topic := policy.TopicFor(types.DomainHealth)
	if topic.Name != "health_insights" || topic.Sensitivity != SensitivityMedium {
		t.Fatalf("TopicFor(health)=%+v, want health_insights/medium", topic)
	}

	// A domain no topic claims is protected, not open.
	unknown := policy.TopicFor(types.Domain("experimental"))
	if unknown.Name != "unclassified" || unknown.Sensitivity != SensitivityHigh {
		t.Fatalf("TopicFor(unknown)=%+v, want unclassified/high", unknown)
	}
}

func TestIsAutonomySensitive(t *testing.T) {
	policy := DefaultGatePolicy()
	if !policy.IsAutonomySensitive(types.DomainFinancial) {
		t.Fatal("financial domain should be autonomy sensitive")
	}
	if policy.IsAutonomySensitive(types.DomainSleep) {
		t.Fatal("sleep domain should not be autonomy sensitive")
	}
}

func TestLoadGatePolicy(t *testing.T) {
	policy, err := LoadGatePolicy("")
	if err != nil {
		t.Fatalf("empty path should yield defaults, got error: %v", err)
	}
	if len(policy.Topics) == 0 {
		t.Fatal("default policy has no topics")
	}

	dir := t.TempDir()

	good := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(good, []byte(`
topics:
  - name: custom_topic
    sensitivity: low
    domains: [preference]
autonomy_sensitive_domains: [financial]
`), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	policy, err = LoadGatePolicy(good)
	if err != nil {
		t.Fatalf("LoadGatePolicy returned error: %v", err)
	}
	if got := policy.TopicFor(types.DomainPreference); got.Name != "custom_topic" {
		t.Fatalf("TopicFor(preference)=%+v, want custom_topic", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte(`
topics:
  - name: broken
    sensitivity: extreme
    domains: [sleep]
`), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadGatePolicy(bad); err == nil {
		t.Fatal("unknown sensitivity was accepted")
	}

	if _, err := LoadGatePolicy(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file was accepted")
	}
}
