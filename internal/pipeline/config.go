package pipeline

// PipelineConfiguration is immutable once a Pipeline is constructed.
//
// MaxRetries is a pointer so WithDefaults can tell "never set" (nil) apart
// from an explicit 0 — spec.md documents maxRetries as a non-negative int
// with a default of 3, and 0 (fail on first attempt, no retries) is a
// legitimate, distinct value from "use the default."
type PipelineConfiguration struct {
	ModelVersion      string
	BatchSize         int
	GPUEnabled        bool
	CheckpointEnabled bool
	MaxRetries        *int
	TimeoutSeconds    int
	StageConfigs      map[string]map[string]any
}

const (
	DefaultMaxRetries     = 3
	DefaultTimeoutSeconds = 3600
)

// IntPtr is a small helper for constructing a PipelineConfiguration with an
// explicit MaxRetries, including the zero value (&0 meaning "no retries").
func IntPtr(n int) *int { return &n }

// WithDefaults returns a copy with unset fields replaced by spec.md's
// documented defaults (maxRetries=3, timeoutSeconds=3600). TimeoutSeconds is
// documented as a positive int, so <=0 is treated as unset; MaxRetries is
// documented as non-negative, so only a nil pointer counts as unset.
func (c PipelineConfiguration) WithDefaults() PipelineConfiguration {
	out := c
	if out.MaxRetries == nil {
		out.MaxRetries = IntPtr(DefaultMaxRetries)
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if out.StageConfigs == nil {
		out.StageConfigs = map[string]map[string]any{}
	}
	return out
}

// EffectiveMaxRetries returns the resolved retry budget, defaulting only if
// MaxRetries was never set. Safe to call even before WithDefaults has run.
func (c PipelineConfiguration) EffectiveMaxRetries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// StageConfigFor returns the per-stage options, or an empty map if none were
// declared — stages must never observe a nil config.
func (c PipelineConfiguration) StageConfigFor(name string) map[string]any {
	if c.StageConfigs == nil {
		return map[string]any{}
	}
	if cfg, ok := c.StageConfigs[name]; ok && cfg != nil {
		return cfg
	}
	return map[string]any{}
}
