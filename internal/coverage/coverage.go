// Package coverage reports which canonical pose angles an identity has
// accumulated and whether coverage suffices for downstream mesh processing.
// All functions are pure; callers persist any coverage updates themselves.
package coverage

import (
	"github.com/tomashavel/faceforge/internal/constants"
	"github.com/tomashavel/faceforge/internal/database"
)

// Priority classifies how urgently an identity needs more angles.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Report describes the angle coverage of one identity.
type Report struct {
	Present      []database.Angle                        `json:"present"`
	Missing      []database.Angle                        `json:"missing"`
	Priority     Priority                                `json:"priority"`
	MeshReady    bool                                    `json:"mesh_ready"`
	Score        float64                                 `json:"score"` // covered fraction, [0,1]
	AngleSamples map[database.Angle]database.AngleSample `json:"samples"`
}

// Assess evaluates an identity's angle map. An angle counts as covered only
// when its best sample meets minQuality; below-bar samples are kept in the
// report but listed as missing.
func Assess(samples map[database.Angle]database.AngleSample, minQuality float64) Report {
	report := Report{
		AngleSamples: samples,
	}

	for _, angle := range database.CanonicalAngles() {
		sample, ok := samples[angle]
		if ok && sample.Quality >= minQuality {
			report.Present = append(report.Present, angle)
		} else {
			report.Missing = append(report.Missing, angle)
		}
	}

	total := len(database.CanonicalAngles())
	report.Score = float64(len(report.Present)) / float64(total)
	report.MeshReady = len(report.Present) >= constants.MeshMinAngles

	switch {
	case len(report.Missing) >= constants.CoverageHighPriorityMissing:
		report.Priority = PriorityHigh
	case len(report.Missing) > 0:
		report.Priority = PriorityMedium
	default:
		report.Priority = PriorityLow
	}
	return report
}

// MergeSample folds a new detection into the coverage map, keeping the
// higher-quality sample per angle. Returns true when the map changed.
// The unknown angle is never tracked.
func MergeSample(samples map[database.Angle]database.AngleSample, angle database.Angle, sample database.AngleSample) bool {
	if !angle.Valid() {
		return false
	}
	existing, ok := samples[angle]
	if ok && existing.Quality >= sample.Quality {
		return false
	}
	samples[angle] = sample
	return true
}
