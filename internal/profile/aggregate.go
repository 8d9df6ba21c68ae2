package profile

import (
	"errors"
	"math"
	"sort"
)

// ErrNoValidAnalyses is returned when every input analysis fails the quality
// bar. A profile is never built from zero evidence.
var ErrNoValidAnalyses = errors.New("no valid analyses to aggregate")

// Signal categories in a fixed order so aggregation output is stable.
const (
	CategoryFace     = "face"
	CategoryBody     = "body"
	CategoryLighting = "lighting"
	CategoryCamera   = "camera"
	CategoryStyle    = "style"
)

// Categories returns the signal categories in aggregation order.
func Categories() []string {
	return []string{CategoryFace, CategoryBody, CategoryLighting, CategoryCamera, CategoryStyle}
}

// SignalStats summarizes one merged signal category.
type SignalStats struct {
	SampleCount int     `json:"sample_count"`
	Confidence  float64 `json:"confidence"`
	Consistency float64 `json:"consistency"` // agreement across samples, [0,1]
}

// ImageQuality is one entry of the ranked reference-image list.
type ImageQuality struct {
	ImageURL string  `json:"image_url"`
	Quality  float64 `json:"quality"`
}

// AggregatedProfile is the merged identity profile. It is a pure function of
// the valid analyses: same input set, same output. Replaced wholesale on
// every recompute, never patched.
type AggregatedProfile struct {
	Face     *FaceGeometry    `json:"face,omitempty"`
	Body     *BodyProportions `json:"body,omitempty"`
	Lighting *Lighting        `json:"lighting,omitempty"`
	Camera   *CameraParams    `json:"camera,omitempty"`
	Style    *StyleSignature  `json:"style,omitempty"`

	Signals     map[string]SignalStats `json:"signals"`
	SampleCount int                    `json:"sample_count"`
	Overall     float64                `json:"overall_confidence"`
	Consistency float64                `json:"consistency"`

	Ranked    []ImageQuality `json:"ranked_images"`
	BestImage string         `json:"best_image"`
}

// Aggregate merges the valid analyses into one profile. Analyses below
// minQuality are dropped before merging; if none survive, it fails with
// ErrNoValidAnalyses rather than producing an empty profile.
func Aggregate(analyses []Analysis, minQuality float64) (*AggregatedProfile, error) {
	valid := make([]Analysis, 0, len(analyses))
	for _, a := range analyses {
		if a.Valid(minQuality) {
			valid = append(valid, a)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoValidAnalyses
	}

	p := &AggregatedProfile{
		Signals:     make(map[string]SignalStats, 5),
		SampleCount: len(valid),
	}

	p.Face = mergeFace(valid, p.Signals)
	p.Body = mergeBody(valid, p.Signals)
	p.Lighting = mergeLighting(valid, p.Signals)
	p.Camera = mergeCamera(valid, p.Signals)
	p.Style = mergeStyle(valid, p.Signals)

	var confSum, consSum float64
	categories := 0
	for _, cat := range Categories() {
		stats, ok := p.Signals[cat]
		if !ok || stats.SampleCount == 0 {
			continue
		}
		confSum += stats.Confidence
		consSum += stats.Consistency
		categories++
	}
	if categories > 0 {
		p.Overall = confSum / float64(categories)
		p.Consistency = consSum / float64(categories)
	}

	p.Ranked = make([]ImageQuality, 0, len(valid))
	for _, a := range valid {
		p.Ranked = append(p.Ranked, ImageQuality{ImageURL: a.ImageURL, Quality: a.Quality})
	}
	sort.SliceStable(p.Ranked, func(i, j int) bool {
		if p.Ranked[i].Quality != p.Ranked[j].Quality {
			return p.Ranked[i].Quality > p.Ranked[j].Quality
		}
		return p.Ranked[i].ImageURL < p.Ranked[j].ImageURL
	})
	p.BestImage = p.Ranked[0].ImageURL

	return p, nil
}

// categoryConfidence grows with sample count and never decreases when a
// sample of equal confidence is added.
func categoryConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range confidences {
		sum += c
	}
	mean := sum / float64(len(confidences))
	n := float64(len(confidences))
	return mean * n / (n + 1)
}

// numericConsistency maps the spread of samples around their mean into
// [0,1]: identical samples score 1, spread equal to the mean scores 0.
func numericConsistency(values []float64) float64 {
	if len(values) < 2 {
		return 1
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	std := math.Sqrt(variance)
	if mean == 0 {
		if std == 0 {
			return 1
		}
		return 0
	}
	cv := std / math.Abs(mean)
	if cv > 1 {
		cv = 1
	}
	return 1 - cv
}

// agreement returns the fraction of samples matching the modal value.
// The mode itself resolves ties by first appearance, keeping merges stable.
func agreement(values []string) (string, float64) {
	if len(values) == 0 {
		return "", 0
	}
	counts := make(map[string]int, len(values))
	best := values[0]
	for _, v := range values {
		counts[v]++
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, float64(counts[best]) / float64(len(values))
}

// pickString returns the value from the highest-confidence sample, skipping
// empties. Earlier samples win confidence ties.
func pickString(values []string, confidences []float64) string {
	best := ""
	bestConf := -1.0
	for i, v := range values {
		if v == "" {
			continue
		}
		if confidences[i] > bestConf {
			best = v
			bestConf = confidences[i]
		}
	}
	return best
}

func weightedMean(values, weights []float64) float64 {
	var sum, wsum float64
	for i, v := range values {
		w := weights[i]
		if w <= 0 {
			w = 1e-6
		}
		sum += v * w
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

func mergeFace(analyses []Analysis, signals map[string]SignalStats) *FaceGeometry {
	var confs, widths, jawlines []float64
	var shapes, eyes, hairColors, hairStyles, skins []string
	for _, a := range analyses {
		if a.Face == nil {
			continue
		}
		f := a.Face
		confs = append(confs, f.Confidence)
		widths = append(widths, f.FaceWidthRatio)
		jawlines = append(jawlines, f.JawlineSharpness)
		shapes = append(shapes, f.FaceShape)
		eyes = append(eyes, f.EyeColor)
		hairColors = append(hairColors, f.HairColor)
		hairStyles = append(hairStyles, f.HairStyle)
		skins = append(skins, f.SkinTone)
	}
	if len(confs) == 0 {
		return nil
	}

	_, shapeAgree := agreement(shapes)
	_, hairAgree := agreement(hairColors)
	consistency := (numericConsistency(widths) + numericConsistency(jawlines) + shapeAgree + hairAgree) / 4

	signals[CategoryFace] = SignalStats{
		SampleCount: len(confs),
		Confidence:  categoryConfidence(confs),
		Consistency: consistency,
	}
	return &FaceGeometry{
		FaceShape:        pickString(shapes, confs),
		EyeColor:         pickString(eyes, confs),
		HairColor:        pickString(hairColors, confs),
		HairStyle:        pickString(hairStyles, confs),
		SkinTone:         pickString(skins, confs),
		FaceWidthRatio:   weightedMean(widths, confs),
		JawlineSharpness: weightedMean(jawlines, confs),
		Confidence:       categoryConfidence(confs),
	}
}

func mergeBody(analyses []Analysis, signals map[string]SignalStats) *BodyProportions {
	var confs, heights, shoulders []float64
	var builds []string
	for _, a := range analyses {
		if a.Body == nil {
			continue
		}
		b := a.Body
		confs = append(confs, b.Confidence)
		heights = append(heights, b.HeightRatio)
		shoulders = append(shoulders, b.ShoulderWidthRatio)
		builds = append(builds, b.Build)
	}
	if len(confs) == 0 {
		return nil
	}

	_, buildAgree := agreement(builds)
	consistency := (numericConsistency(heights) + numericConsistency(shoulders) + buildAgree) / 3

	signals[CategoryBody] = SignalStats{
		SampleCount: len(confs),
		Confidence:  categoryConfidence(confs),
		Consistency: consistency,
	}
	return &BodyProportions{
		Build:              pickString(builds, confs),
		HeightRatio:        weightedMean(heights, confs),
		ShoulderWidthRatio: weightedMean(shoulders, confs),
		Confidence:         categoryConfidence(confs),
	}
}

func mergeLighting(analyses []Analysis, signals map[string]SignalStats) *Lighting {
	var confs, contrasts []float64
	var directions, temperatures []string
	for _, a := range analyses {
		if a.Lighting == nil {
			continue
		}
		l := a.Lighting
		confs = append(confs, l.Confidence)
		contrasts = append(contrasts, l.Contrast)
		directions = append(directions, l.Direction)
		temperatures = append(temperatures, l.Temperature)
	}
	if len(confs) == 0 {
		return nil
	}

	_, dirAgree := agreement(directions)
	consistency := (numericConsistency(contrasts) + dirAgree) / 2

	signals[CategoryLighting] = SignalStats{
		SampleCount: len(confs),
		Confidence:  categoryConfidence(confs),
		Consistency: consistency,
	}
	return &Lighting{
		Direction:   pickString(directions, confs),
		Temperature: pickString(temperatures, confs),
		Contrast:    weightedMean(contrasts, confs),
		Confidence:  categoryConfidence(confs),
	}
}

func mergeCamera(analyses []Analysis, signals map[string]SignalStats) *CameraParams {
	var confs, focals, elevations []float64
	var distances []string
	for _, a := range analyses {
		if a.Camera == nil {
			continue
		}
		c := a.Camera
		confs = append(confs, c.Confidence)
		focals = append(focals, c.FocalLength)
		elevations = append(elevations, c.Elevation)
		distances = append(distances, c.Distance)
	}
	if len(confs) == 0 {
		return nil
	}

	_, distAgree := agreement(distances)
	consistency := (numericConsistency(focals) + distAgree) / 2

	signals[CategoryCamera] = SignalStats{
		SampleCount: len(confs),
		Confidence:  categoryConfidence(confs),
		Consistency: consistency,
	}
	return &CameraParams{
		FocalLength: weightedMean(focals, confs),
		Distance:    pickString(distances, confs),
		Elevation:   weightedMean(elevations, confs),
		Confidence:  categoryConfidence(confs),
	}
}

func mergeStyle(analyses []Analysis, signals map[string]SignalStats) *StyleSignature {
	var confs []float64
	var clothings, palettes, moods []string
	for _, a := range analyses {
		if a.Style == nil {
			continue
		}
		s := a.Style
		confs = append(confs, s.Confidence)
		clothings = append(clothings, s.Clothing)
		palettes = append(palettes, s.Palette)
		moods = append(moods, s.Mood)
	}
	if len(confs) == 0 {
		return nil
	}

	_, clothAgree := agreement(clothings)
	_, paletteAgree := agreement(palettes)
	consistency := (clothAgree + paletteAgree) / 2

	signals[CategoryStyle] = SignalStats{
		SampleCount: len(confs),
		Confidence:  categoryConfidence(confs),
		Consistency: consistency,
	}
	return &StyleSignature{
		Clothing:   pickString(clothings, confs),
		Palette:    pickString(palettes, confs),
		Mood:       pickString(moods, confs),
		Confidence: categoryConfidence(confs),
	}
}
