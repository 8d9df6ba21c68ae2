// Package profile aggregates per-image appearance analyses into a single
// confidence-weighted identity profile used to constrain generation.
package profile

// FaceGeometry describes facial structure extracted from one image.
type FaceGeometry struct {
	FaceShape        string  `json:"face_shape"`
	EyeColor         string  `json:"eye_color"`
	HairColor        string  `json:"hair_color"`
	HairStyle        string  `json:"hair_style"`
	SkinTone         string  `json:"skin_tone"`
	FaceWidthRatio   float64 `json:"face_width_ratio"`
	JawlineSharpness float64 `json:"jawline_sharpness"`
	Confidence       float64 `json:"confidence"`
}

// BodyProportions describes build and proportions extracted from one image.
type BodyProportions struct {
	Build              string  `json:"build"`
	HeightRatio        float64 `json:"height_ratio"`
	ShoulderWidthRatio float64 `json:"shoulder_width_ratio"`
	Confidence         float64 `json:"confidence"`
}

// Lighting describes the lighting setup observed in one image.
type Lighting struct {
	Direction   string  `json:"direction"`
	Temperature string  `json:"temperature"`
	Contrast    float64 `json:"contrast"`
	Confidence  float64 `json:"confidence"`
}

// CameraParams describes the apparent camera setup of one image.
type CameraParams struct {
	FocalLength float64 `json:"focal_length_mm"`
	Distance    string  `json:"distance"`
	Elevation   float64 `json:"elevation_deg"`
	Confidence  float64 `json:"confidence"`
}

// StyleSignature describes clothing and overall visual style in one image.
type StyleSignature struct {
	Clothing   string  `json:"clothing"`
	Palette    string  `json:"palette"`
	Mood       string  `json:"mood"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the full per-image analysis record produced by the vision
// analyzer. Any signal may be nil when the analyzer could not extract it.
type Analysis struct {
	ImageURL string  `json:"image_url"`
	Quality  float64 `json:"quality"` // overall usefulness of the image, [0,1]

	Face     *FaceGeometry    `json:"face,omitempty"`
	Body     *BodyProportions `json:"body,omitempty"`
	Lighting *Lighting        `json:"lighting,omitempty"`
	Camera   *CameraParams    `json:"camera,omitempty"`
	Style    *StyleSignature  `json:"style,omitempty"`
}

// Valid reports whether the analysis clears the minimum quality bar and
// carries at least one signal.
func (a *Analysis) Valid(minQuality float64) bool {
	if a.Quality < minQuality {
		return false
	}
	return a.Face != nil || a.Body != nil || a.Lighting != nil || a.Camera != nil || a.Style != nil
}
