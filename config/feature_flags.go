package config

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// FeatureFlags manages messaging toggles and gradual rollouts.
// Students are assigned to rollout buckets by a hash of their ID, so a
// student stays in the same bucket across runs.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Per-student overrides (for support and debugging).
	studentOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	RolloutPercent int

	// Course targeting ("M 117", ...). Empty means all courses.
	TargetCourses []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	StudentID string
	Course    string
	Now       time.Time
}

// Predefined feature flag names.
const (
	// Enqueue selected messages into the outbox. Off means decisions are
	// computed and logged only.
	FeatureMessagingEnqueue = "messaging.enqueue"

	// Encouragement messages for on-schedule students.
	FeatureMessagingOnTime = "messaging.on_time"

	// Grade-optimization messages after the final is passed.
	FeatureMessagingGrade = "messaging.grade"

	// Shorter re-contact interval for CRITICAL students near the final.
	FeatureMessagingNearTermTightening = "messaging.near_term_tightening"
)

// LoadFeatureFlags loads feature flags with overrides from v.
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := NewFeatureFlags()
	if v != nil {
		ff.loadFrom(v)
	}
	return ff
}

// NewFeatureFlags returns the defaults with no overrides applied.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		studentOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureMessagingEnqueue] = &Feature{
		Name:           FeatureMessagingEnqueue,
		Description:    "Queue selected messages for delivery",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMessagingOnTime] = &Feature{
		Name:           FeatureMessagingOnTime,
		Description:    "Encouragement for students who are on schedule",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMessagingGrade] = &Feature{
		Name:           FeatureMessagingGrade,
		Description:    "Grade improvement messages after the final",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMessagingNearTermTightening] = &Feature{
		Name:           FeatureMessagingNearTermTightening,
		Description:    "Two-day interval for CRITICAL students in the last week",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFrom applies overrides.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_MESSAGING_ON_TIME=false
// Example: FEATURE_MESSAGING_GRADE=25 (25% rollout)
func (ff *FeatureFlags) loadFrom(v *viper.Viper) {
	for name, feature := range ff.features {
		val := strings.TrimSpace(v.GetString(featureNameToEnvKey(name)))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to its environment key.
// "messaging.on_time" -> "FEATURE_MESSAGING_ON_TIME"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.StudentID != "" {
		if overrides, ok := ff.studentOverrides[ctx.StudentID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	now := time.Now()
	if ctx != nil && !ctx.Now.IsZero() {
		now = ctx.Now
	}
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if len(feature.TargetCourses) > 0 && ctx != nil && ctx.Course != "" {
		match := false
		for _, c := range feature.TargetCourses {
			if c == ctx.Course {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.StudentID != "" {
		return isInRollout(ctx.StudentID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout maps student+feature to a stable bucket in 0-99.
func isInRollout(studentID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(studentID))
	return int(h.Sum32()%100) < percent
}

// SetStudentOverride forces a feature on or off for one student.
func (ff *FeatureFlags) SetStudentOverride(studentID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.studentOverrides[studentID]; !ok {
		ff.studentOverrides[studentID] = make(map[string]bool)
	}
	ff.studentOverrides[studentID][featureName] = enabled
}

// ClearStudentOverrides removes all overrides for a student.
func (ff *FeatureFlags) ClearStudentOverrides(studentID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.studentOverrides, studentID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
