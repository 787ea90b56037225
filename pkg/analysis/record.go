// Package analysis scores files by importance and orders them into an
// onboarding reading path.
package analysis

const (
	MinImportance     = 0
	MaxImportance     = 10
	DefaultImportance = 3

	UnavailableSummary = "Analysis unavailable."
)

// Record is the model's assessment of one file
type Record struct {
	Importance       int      `json:"importance"`
	Summary          string   `json:"summary"`
	Responsibilities []string `json:"responsibilities"`
	KeyExports       []string `json:"key_exports"`
	OnboardingReason string   `json:"onboarding_reason"`
}

// DefaultRecord is assigned to every file the model could not assess
func DefaultRecord() Record {
	return Record{
		Importance:       DefaultImportance,
		Summary:          UnavailableSummary,
		Responsibilities: []string{},
		KeyExports:       []string{},
		OnboardingReason: "",
	}
}

// normalize clamps the score and replaces nil lists so records serialize the same way
func (r Record) normalize() Record {
	r.Importance = max(MinImportance, min(MaxImportance, r.Importance))
	if r.Responsibilities == nil {
		r.Responsibilities = []string{}
	}
	if r.KeyExports == nil {
		r.KeyExports = []string{}
	}
	return r
}

// Step is one entry of the onboarding path. The file's record is copied in
// so a client can render the path without a second lookup.
type Step struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
	Record
}
