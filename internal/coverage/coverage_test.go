package coverage

import (
	"testing"

	"github.com/tomashavel/faceforge/internal/database"
)

func TestAssessEmpty(t *testing.T) {
	report := Assess(nil, 0.35)
	if len(report.Present) != 0 {
		t.Errorf("expected no present angles, got %v", report.Present)
	}
	if len(report.Missing) != 5 {
		t.Errorf("expected all 5 angles missing, got %v", report.Missing)
	}
	if report.Priority != PriorityHigh {
		t.Errorf("expected high priority, got %s", report.Priority)
	}
	if report.MeshReady {
		t.Error("empty coverage must not be mesh ready")
	}
	if report.Score != 0 {
		t.Errorf("expected score 0, got %v", report.Score)
	}
}

func TestAssessQualityBar(t *testing.T) {
	samples := map[database.Angle]database.AngleSample{
		database.AngleFront: {DetectionID: 1, Quality: 0.9},
		database.AngleLeft:  {DetectionID: 2, Quality: 0.1}, // below bar
	}

	report := Assess(samples, 0.35)
	if len(report.Present) != 1 || report.Present[0] != database.AngleFront {
		t.Errorf("expected only front present, got %v", report.Present)
	}
	found := false
	for _, a := range report.Missing {
		if a == database.AngleLeft {
			found = true
		}
	}
	if !found {
		t.Error("low-quality angle should count as missing")
	}
}

func TestAssessMeshReadyAndPriority(t *testing.T) {
	samples := map[database.Angle]database.AngleSample{
		database.AngleFront: {Quality: 0.9},
		database.AngleLeft:  {Quality: 0.8},
		database.AngleRight: {Quality: 0.7},
	}

	report := Assess(samples, 0.35)
	if !report.MeshReady {
		t.Error("three covered angles should be mesh ready")
	}
	if report.Priority != PriorityMedium {
		t.Errorf("expected medium priority with 2 missing, got %s", report.Priority)
	}
	if report.Score != 0.6 {
		t.Errorf("expected score 0.6, got %v", report.Score)
	}
}

func TestAssessComplete(t *testing.T) {
	samples := make(map[database.Angle]database.AngleSample)
	for _, a := range database.CanonicalAngles() {
		samples[a] = database.AngleSample{Quality: 0.9}
	}

	report := Assess(samples, 0.35)
	if len(report.Missing) != 0 {
		t.Errorf("expected no missing angles, got %v", report.Missing)
	}
	if report.Priority != PriorityLow {
		t.Errorf("expected low priority, got %s", report.Priority)
	}
	if report.Score != 1.0 {
		t.Errorf("expected score 1.0, got %v", report.Score)
	}
}

func TestMergeSample(t *testing.T) {
	samples := make(map[database.Angle]database.AngleSample)

	if !MergeSample(samples, database.AngleFront, database.AngleSample{DetectionID: 1, Quality: 0.5}) {
		t.Error("expected first sample to be stored")
	}
	if MergeSample(samples, database.AngleFront, database.AngleSample{DetectionID: 2, Quality: 0.3}) {
		t.Error("lower-quality sample must not replace existing")
	}
	if !MergeSample(samples, database.AngleFront, database.AngleSample{DetectionID: 3, Quality: 0.8}) {
		t.Error("higher-quality sample should replace existing")
	}
	if samples[database.AngleFront].DetectionID != 3 {
		t.Errorf("expected detection 3 kept, got %d", samples[database.AngleFront].DetectionID)
	}

	if MergeSample(samples, database.AngleUnknown, database.AngleSample{Quality: 0.9}) {
		t.Error("unknown angle must never be tracked")
	}
}
