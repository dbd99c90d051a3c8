// SPDX-License-Identifier: GPL-3.0-or-later

// Package config holds the immutable value structs the core consumes. The
// core never parses text configuration (spec.md §6, §9's "text-format
// configuration" design note): an out-of-scope layer parses operator-facing
// config files and produces a [Snapshot], published through an
// [atomic.Pointer] so every component can hot-reload without locking.
package config

import (
	"sync/atomic"
	"time"
)

// SourceKind selects which of the three collector variants a SourceConfig
// describes.
type SourceKind string

const (
	SourceSubscription SourceKind = "subscription"
	SourcePolling      SourceKind = "polling"
	SourcePullAPI      SourceKind = "pull_api"
)

// RegisterType is the wire encoding of one polled register.
type RegisterType string

const (
	RegisterFloat32BE RegisterType = "float32_be"
	RegisterFloat32LE RegisterType = "float32_le"
	RegisterUint16    RegisterType = "uint16"
	RegisterInt16     RegisterType = "int16"
)

// TagConfig describes one tag/channel carried by a source.
type TagConfig struct {
	Name string
	Unit string

	// Register is the polling source's register address for this tag;
	// meaningful only when the owning SourceConfig.Kind is
	// [SourcePolling].
	Register     uint16
	RegisterType RegisterType

	// JSONPath is the pull-API source's JSON path for this tag;
	// meaningful only when the owning SourceConfig.Kind is
	// [SourcePullAPI].
	JSONPath string

	// CadenceHint is an advisory expected sampling interval, used by
	// health reporting and the quality pipeline's interpolation window,
	// not a hard schedule.
	CadenceHint time.Duration
}

// BackoffConfig is the shared reconnection backoff shape for all three
// collector variants (spec.md §4.1).
type BackoffConfig struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64 // fraction, e.g. 0.2 for +-20%
}

// AuthMode selects the pull-API collector's authentication scheme.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBearer AuthMode = "bearer"
	AuthBasic  AuthMode = "basic"
)

// SourceConfig is one configured data source.
type SourceConfig struct {
	Name     string
	Kind     SourceKind
	Endpoint string

	// CredentialsEnvVar names the environment variable holding the
	// pull-API bearer token or "user:pass" basic-auth pair, resolved at
	// Start() (source-configuration errors fail fast, §7).
	CredentialsEnvVar string
	AuthMode          AuthMode

	Tags []TagConfig

	Backoff BackoffConfig

	// PollInterval is the fixed read/fetch interval for polling and
	// pull-API sources.
	PollInterval time.Duration
}

// ThresholdConfig is the per-tag threshold-validation bounds (spec.md
// §4.2 stage 1).
type ThresholdConfig struct {
	Min, Max           float64
	WarnLow, WarnHigh  float64
	HasWarnLow         bool
	HasWarnHigh        bool

	// GapMaxSeconds bounds how long the interpolation stage (§4.2 stage
	// 2) will hold a gap flagged from this tag's threshold check before
	// dropping it. Zero means the pipeline default (10s) applies.
	GapMaxSeconds time.Duration
}

// CalibrationConfig is the per-tag linear calibration transform (spec.md
// §4.2 stage 4): corrected = Offset + Scale*raw.
type CalibrationConfig struct {
	Offset float64
	Scale  float64
}

// CrossTagRule is a closed-form cross-tag physical-reasonableness
// constraint (spec.md §4.2 stage 3, §9's "not an open-ended string-eval
// DSL" design note), e.g. "advance_rate > 0 implies thrust > 0".
type CrossTagRule struct {
	Name           string
	AntecedentTag  string
	AntecedentGT   float64
	ConsequentTag  string
	ConsequentGT   float64
}

// ReasonablenessConfig is the per-tag derivative bound plus the shared
// cross-tag rule set.
type ReasonablenessConfig struct {
	MaxRate    float64
	CrossRules []CrossTagRule
}

// OverflowPolicy selects the buffer writer's behavior when max_size would
// be exceeded (spec.md §4.3).
type OverflowPolicy string

const (
	DropOldest OverflowPolicy = "drop_oldest"
	DropNewest OverflowPolicy = "drop_newest"
	Block      OverflowPolicy = "block"
)

// BufferConfig is the buffer writer's size, flush, and overflow parameters
// (spec.md §4.3).
type BufferConfig struct {
	MaxSize        int
	FlushThreshold int
	FlushInterval  time.Duration
	OverflowPolicy OverflowPolicy
	DrainGrace     time.Duration
}

// DefaultBufferConfig returns the spec's documented defaults.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		MaxSize:        10_000,
		FlushThreshold: 1_000,
		FlushInterval:  5 * time.Second,
		OverflowPolicy: DropOldest,
		DrainGrace:     30 * time.Second,
	}
}

// AlignerConfig is the ring aligner's timing and aggregation parameters
// (spec.md §4.5).
type AlignerConfig struct {
	TickInterval        time.Duration
	SettlementLagWindow time.Duration
	GraceWindow         time.Duration
	MaxRingAge          time.Duration

	// RevolutionsPerSecond and CrossSectionArea feed specific_energy;
	// GroundLossCoefficient and VolumeLossCoefficient feed the
	// ground_loss_rate / volume_loss_ratio formulas. Values come from
	// ring config (spec.md §4.5 step 5).
	RevolutionsPerSecond  float64
	CrossSectionArea      float64
	GroundLossCoefficient float64
	VolumeLossCoefficient float64

	// GeoZones maps a ring-start timestamp lower bound (ms since epoch)
	// to an opaque zone label; the aligner looks up the zone whose
	// bound is the greatest one <= the ring's start_ts.
	GeoZones map[int64]string
}

// DefaultAlignerConfig returns the spec's documented defaults.
func DefaultAlignerConfig() AlignerConfig {
	return AlignerConfig{
		TickInterval:        300 * time.Second,
		SettlementLagWindow: 120 * time.Second,
		GraceWindow:         24 * time.Hour,
		MaxRingAge:          24 * time.Hour,
	}
}

// StoreConfig is the local store's path and retention parameters (spec.md
// §4.4, §6).
type StoreConfig struct {
	Path            string
	RetentionDaysPLC        int
	RetentionDaysAttitude   int
	RetentionDaysMonitoring int
}

// Snapshot is the immutable, fully-resolved configuration the core
// consumes. An out-of-scope text-config layer parses operator config files
// and produces Snapshots; the core only ever sees this value struct
// (spec.md §6, §9).
type Snapshot struct {
	Sources       []SourceConfig
	Thresholds    map[string]ThresholdConfig
	Calibrations  map[string]CalibrationConfig
	Reasonableness map[string]ReasonablenessConfig
	Buffer        BufferConfig
	Aligner       AlignerConfig
	Store         StoreConfig
}

// Source returns the SourceConfig named name, or false if none matches.
func (s *Snapshot) Source(name string) (SourceConfig, bool) {
	for _, sc := range s.Sources {
		if sc.Name == name {
			return sc, true
		}
	}
	return SourceConfig{}, false
}

// Publisher holds the current [Snapshot] behind an [atomic.Pointer],
// matching §9's "publish an immutable config snapshot via an atomic
// pointer; readers acquire once per record and run to completion against
// that snapshot" design note.
type Publisher struct {
	ptr atomic.Pointer[Snapshot]
}

// NewPublisher returns a [*Publisher] holding the given initial snapshot.
func NewPublisher(initial *Snapshot) *Publisher {
	p := &Publisher{}
	p.ptr.Store(initial)
	return p
}

// Load returns the current snapshot. Safe for concurrent use.
func (p *Publisher) Load() *Snapshot {
	return p.ptr.Load()
}

// Publish replaces the current snapshot. In-flight readers that already
// called Load keep running against their old snapshot.
func (p *Publisher) Publish(next *Snapshot) {
	p.ptr.Store(next)
}
