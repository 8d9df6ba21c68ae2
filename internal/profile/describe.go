package profile

import (
	"fmt"
	"strings"
)

// Descriptors renders the profile into prompt-ready text fragments keyed by
// signal category. Categories absent from the profile are omitted so callers
// can substitute their own generic fallbacks.
func (p *AggregatedProfile) Descriptors() map[string]string {
	out := make(map[string]string, 5)
	if p == nil {
		return out
	}
	if p.Face != nil {
		out[CategoryFace] = describeFace(p.Face)
	}
	if p.Body != nil {
		out[CategoryBody] = describeBody(p.Body)
	}
	if p.Lighting != nil {
		out[CategoryLighting] = describeLighting(p.Lighting)
	}
	if p.Camera != nil {
		out[CategoryCamera] = describeCamera(p.Camera)
	}
	if p.Style != nil {
		out[CategoryStyle] = describeStyle(p.Style)
	}
	return out
}

func describeFace(f *FaceGeometry) string {
	var parts []string
	if f.FaceShape != "" {
		parts = append(parts, f.FaceShape+" face shape")
	}
	if f.EyeColor != "" {
		parts = append(parts, f.EyeColor+" eyes")
	}
	if f.HairColor != "" || f.HairStyle != "" {
		hair := strings.TrimSpace(f.HairColor + " " + f.HairStyle)
		parts = append(parts, hair+" hair")
	}
	if f.SkinTone != "" {
		parts = append(parts, f.SkinTone+" skin tone")
	}
	return strings.Join(parts, ", ")
}

func describeBody(b *BodyProportions) string {
	var parts []string
	if b.Build != "" {
		parts = append(parts, b.Build+" build")
	}
	if b.ShoulderWidthRatio > 0 {
		parts = append(parts, fmt.Sprintf("shoulder-to-height ratio around %.2f", b.ShoulderWidthRatio))
	}
	return strings.Join(parts, ", ")
}

func describeLighting(l *Lighting) string {
	var parts []string
	if l.Direction != "" {
		parts = append(parts, l.Direction+" lighting")
	}
	if l.Temperature != "" {
		parts = append(parts, l.Temperature+" color temperature")
	}
	return strings.Join(parts, ", ")
}

func describeCamera(c *CameraParams) string {
	var parts []string
	if c.FocalLength > 0 {
		parts = append(parts, fmt.Sprintf("shot on roughly %.0fmm focal length", c.FocalLength))
	}
	if c.Distance != "" {
		parts = append(parts, c.Distance+" framing")
	}
	return strings.Join(parts, ", ")
}

func describeStyle(s *StyleSignature) string {
	var parts []string
	if s.Clothing != "" {
		parts = append(parts, "wearing "+s.Clothing)
	}
	if s.Palette != "" {
		parts = append(parts, s.Palette+" palette")
	}
	if s.Mood != "" {
		parts = append(parts, s.Mood+" mood")
	}
	return strings.Join(parts, ", ")
}
