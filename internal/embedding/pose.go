package embedding

import "github.com/tomashavel/faceforge/internal/database"

// Head pose thresholds in degrees. A face inside both bounds is frontal;
// yaw takes precedence over pitch when both exceed their bound.
const (
	frontalYawLimit   = 20.0
	frontalPitchLimit = 15.0
)

// AngleFromPose classifies a head pose into a canonical viewing angle.
func AngleFromPose(yaw, pitch float64) database.Angle {
	absYaw := yaw
	if absYaw < 0 {
		absYaw = -absYaw
	}
	absPitch := pitch
	if absPitch < 0 {
		absPitch = -absPitch
	}

	if absYaw <= frontalYawLimit && absPitch <= frontalPitchLimit {
		return database.AngleFront
	}
	if absYaw > frontalYawLimit {
		if yaw < 0 {
			return database.AngleLeft
		}
		return database.AngleRight
	}
	if pitch > frontalPitchLimit {
		return database.AngleUp
	}
	return database.AngleDown
}

// AngleForDetection resolves the canonical angle for a detection, trusting
// the service's own classification when it provided one.
func AngleForDetection(det Detection) database.Angle {
	if det.Angle != "" {
		if a := database.Angle(det.Angle); a.Valid() {
			return a
		}
	}
	return AngleFromPose(det.Yaw, det.Pitch)
}
