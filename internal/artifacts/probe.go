package artifacts

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Freshness buckets an artifact's age for operator guidance
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessAging   Freshness = "aging"
	FreshnessStale   Freshness = "stale"
	FreshnessMissing Freshness = "missing"
	// FreshnessUnknown is reported for artifacts that exist but carry no
	// modification time, e.g. a remote file served without Last-Modified.
	FreshnessUnknown Freshness = "unknown"
)

// Age thresholds in whole days
const (
	FreshMaxDays = 0
	AgingMaxDays = 1
)

// StaleHint is attached to stale artifacts
const StaleHint = "refresh recommended"

// Classify maps whole elapsed days to a freshness bucket
func Classify(ageDays int) Freshness {
	switch {
	case ageDays <= FreshMaxDays:
		return FreshnessFresh
	case ageDays <= AgingMaxDays:
		return FreshnessAging
	default:
		return FreshnessStale
	}
}

// AgeDays is the number of whole 24h periods elapsed since modified.
// Modification times in the future count as zero.
func AgeDays(modified, now time.Time) int {
	elapsed := now.Sub(modified)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

// ArtifactStatus is a point-in-time view of one artifact. A missing
// artifact is a normal state, not an error.
type ArtifactStatus struct {
	Key        string     `json:"key,omitempty"`
	Name       string     `json:"name,omitempty"`
	Path       string     `json:"path"`
	Exists     bool       `json:"exists"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	AgeDays    int        `json:"age_days"`
	Freshness  Freshness  `json:"freshness"`
	Hint       string     `json:"hint,omitempty"`
	// Error holds the reason a present-but-unreadable artifact was
	// reported as absent.
	Error string `json:"error,omitempty"`
}

// Stale reports whether the artifact should be refreshed
func (s ArtifactStatus) Stale() bool {
	return s.Freshness == FreshnessStale
}

func missingStatus(path string) ArtifactStatus {
	return ArtifactStatus{Path: path, Freshness: FreshnessMissing}
}

func presentStatus(path string, modified time.Time, now time.Time) ArtifactStatus {
	age := AgeDays(modified, now)
	st := ArtifactStatus{
		Path:       path,
		Exists:     true,
		ModifiedAt: &modified,
		AgeDays:    age,
		Freshness:  Classify(age),
	}
	if st.Freshness == FreshnessStale {
		st.Hint = StaleHint
	}
	return st
}

// StatusReader reports artifact status from some backing store
type StatusReader interface {
	StatusOf(ctx context.Context, artifact Artifact) ArtifactStatus
	StatusAll(ctx context.Context, artifacts []Artifact) []ArtifactStatus
}

// Probe reads artifact metadata from the local filesystem. Nothing is
// cached; every call stats the file again.
type Probe struct {
	root string
	now  func() time.Time
}

// ProbeOption configures a Probe
type ProbeOption func(*Probe)

// WithClock overrides the time source used for age computation
func WithClock(now func() time.Time) ProbeOption {
	return func(p *Probe) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProbe creates a probe resolving relative paths against root
func NewProbe(root string, opts ...ProbeOption) *Probe {
	p := &Probe{root: root, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Root returns the project root the probe resolves against
func (p *Probe) Root() string {
	return p.root
}

// Status stats path, which may be absolute or relative to the root
func (p *Probe) Status(path string) ArtifactStatus {
	full := p.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		st := missingStatus(full)
		if !errors.Is(err, fs.ErrNotExist) {
			st.Error = err.Error()
		}
		return st
	}
	return presentStatus(full, info.ModTime(), p.now())
}

// StatusOf implements StatusReader
func (p *Probe) StatusOf(_ context.Context, artifact Artifact) ArtifactStatus {
	st := p.Status(artifact.Path)
	st.Key = artifact.Key
	st.Name = artifact.Name
	return st
}

// StatusAll reports every artifact in the given order
func (p *Probe) StatusAll(ctx context.Context, artifacts []Artifact) []ArtifactStatus {
	return collect(ctx, p, artifacts)
}

func (p *Probe) resolve(path string) string {
	if filepath.IsAbs(path) || p.root == "" {
		return path
	}
	return filepath.Join(p.root, filepath.FromSlash(path))
}

func collect(ctx context.Context, r StatusReader, artifacts []Artifact) []ArtifactStatus {
	out := make([]ArtifactStatus, 0, len(artifacts))
	for _, a := range artifacts {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.StatusOf(ctx, a))
	}
	return out
}
