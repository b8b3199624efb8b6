package types

// Domain is the fixed set of life domains an observation or derived entity
// can belong to.
type Domain string

const (
	DomainPreference    Domain = "preference"
	DomainGoal          Domain = "goal"
	DomainEngagement    Domain = "engagement"
	DomainHealth        Domain = "health"
	DomainSleep         Domain = "sleep"
	DomainCommunication Domain = "communication"
	DomainAutonomy      Domain = "autonomy"
	DomainSocial        Domain = "social"
	DomainFinancial     Domain = "financial"
	DomainRoutine       Domain = "routine"
)

var allDomains = map[Domain]bool{
	DomainPreference:    true,
	DomainGoal:          true,
	DomainEngagement:    true,
	DomainHealth:        true,
	DomainSleep:         true,
	DomainCommunication: true,
	DomainAutonomy:      true,
	DomainSocial:        true,
	DomainFinancial:     true,
	DomainRoutine:       true,
}

func ValidDomain(d Domain) bool { return allDomains[d] }

// ObservationSource says how an observation entered the store.
type ObservationSource string

const (
	SourceExplicit   ObservationSource = "explicit"
	SourceInferred   ObservationSource = "inferred"
	SourceBehavioral ObservationSource = "behavioral"
	SourceSystem     ObservationSource = "system"
)

func ValidSource(s ObservationSource) bool {
	switch s {
	case SourceExplicit, SourceInferred, SourceBehavioral, SourceSystem:
		return true
	}
	return false
}

// SourceReliability weights evidence by how it was observed.
func SourceReliability(s ObservationSource) float64 {
	switch s {
	case SourceExplicit:
		return 1.0
	case SourceSystem:
		return 0.9
	case SourceBehavioral:
		return 0.75
	case SourceInferred:
		return 0.6
	}
	return 0.5
}

type DriftType string

const (
	DriftGradual      DriftType = "gradual"
	DriftAbrupt       DriftType = "abrupt"
	DriftSeasonal     DriftType = "seasonal"
	DriftExperimental DriftType = "experimental"
	DriftStable       DriftType = "stable"
	DriftRegression   DriftType = "regression"
)

type SignalType string

const (
	SignalHealthDrift          SignalType = "health_drift"
	SignalBehavioralDrift      SignalType = "behavioral_drift"
	SignalRoutineInstability   SignalType = "routine_instability"
	SignalCognitiveLoad        SignalType = "cognitive_load_increase"
	SignalSocialWithdrawal     SignalType = "social_withdrawal"
	SignalSocialOverload       SignalType = "social_overload"
	SignalPreferenceShift      SignalType = "preference_shift"
	SignalPositiveMomentum     SignalType = "positive_momentum"
)

type SignalStatus string

const (
	SignalStatusActive       SignalStatus = "active"
	SignalStatusAcknowledged SignalStatus = "acknowledged"
	SignalStatusDismissed    SignalStatus = "dismissed"
	SignalStatusActioned     SignalStatus = "actioned"
	SignalStatusExpired      SignalStatus = "expired"
)

type UserImpact string

const (
	ImpactLow    UserImpact = "low"
	ImpactMedium UserImpact = "medium"
	ImpactHigh   UserImpact = "high"
)

// SuggestedAction on a signal is strictly non-directive; concrete actions
// come from the suggestion generator only.
type SuggestedAction string

const (
	ActionAwareness  SuggestedAction = "awareness"
	ActionReflection SuggestedAction = "reflection"
	ActionCheckIn    SuggestedAction = "check_in"
)

type WindowType string

const (
	WindowRisk        WindowType = "risk"
	WindowOpportunity WindowType = "opportunity"
)

type TimeHorizon string

const (
	HorizonShort TimeHorizon = "short"
	HorizonMid   TimeHorizon = "mid"
	HorizonLong  TimeHorizon = "long"
)

func ValidHorizon(h TimeHorizon) bool {
	switch h {
	case HorizonShort, HorizonMid, HorizonLong:
		return true
	}
	return false
}

type WindowStatus string

const (
	WindowStatusUpcoming     WindowStatus = "upcoming"
	WindowStatusActive       WindowStatus = "active"
	WindowStatusPassed       WindowStatus = "passed"
	WindowStatusInvalidated  WindowStatus = "invalidated"
	WindowStatusAcknowledged WindowStatus = "acknowledged"
)

type RecommendedMode string

const (
	ModeAwareness  RecommendedMode = "awareness"
	ModeReflection RecommendedMode = "reflection"
	ModeGentlePrep RecommendedMode = "gentle_prep"
)

type SuggestionKind string

const (
	SuggestionMitigation    SuggestionKind = "mitigation"
	SuggestionReinforcement SuggestionKind = "reinforcement"
)

type SuggestionStatus string

const (
	SuggestionStatusActive       SuggestionStatus = "active"
	SuggestionStatusDismissed    SuggestionStatus = "dismissed"
	SuggestionStatusAcknowledged SuggestionStatus = "acknowledged"
	SuggestionStatusExpired      SuggestionStatus = "expired"
	SuggestionStatusSuperseded   SuggestionStatus = "superseded"
)

type PlanStatus string

const (
	PlanStatusProposed            PlanStatus = "proposed"
	PlanStatusPendingConfirmation PlanStatus = "pending_confirmation"
	PlanStatusApproved            PlanStatus = "approved"
	PlanStatusApplied             PlanStatus = "applied"
	PlanStatusRejected            PlanStatus = "rejected"
	PlanStatusRolledBack          PlanStatus = "rolled_back"
)

type PlanTrigger string

const (
	TriggerDriftDetection PlanTrigger = "drift_detection"
	TriggerUserFeedback   PlanTrigger = "user_feedback"
	TriggerScheduled      PlanTrigger = "scheduled"
	TriggerManual         PlanTrigger = "manual"
)

func ValidPlanTrigger(t PlanTrigger) bool {
	switch t {
	case TriggerDriftDetection, TriggerUserFeedback, TriggerScheduled, TriggerManual:
		return true
	}
	return false
}

type BoundaryType string

const (
	BoundaryHard            BoundaryType = "hard_boundary"
	BoundarySoft            BoundaryType = "soft_boundary"
	BoundaryConsentRequired BoundaryType = "consent_required"
	BoundaryTopicBlocked    BoundaryType = "topic_blocked"
	BoundarySafeToProceed   BoundaryType = "safe_to_proceed"
)

type ConsentStatus string

const (
	ConsentGranted     ConsentStatus = "granted"
	ConsentDenied      ConsentStatus = "denied"
	ConsentSoftRefusal ConsentStatus = "soft_refusal"
	ConsentRevoked     ConsentStatus = "revoked"
	ConsentExpired     ConsentStatus = "expired"
	ConsentUnknown     ConsentStatus = "unknown"
)

type EmotionalSafetyLevel string

const (
	SafetySteady     EmotionalSafetyLevel = "steady"
	SafetySensitive  EmotionalSafetyLevel = "sensitive"
	SafetyVulnerable EmotionalSafetyLevel = "vulnerable"
	SafetyFragile    EmotionalSafetyLevel = "fragile"
)

type Provenance string

const (
	ProvenanceExplicit Provenance = "explicit"
	ProvenanceInferred Provenance = "inferred"
	ProvenanceDefault  Provenance = "default"
)
