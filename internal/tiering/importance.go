// Package tiering implements the importance scoring, storage-tier
// assignment, and consolidation batch jobs, plus a non-blocking
// periodic runner that drives them.
package tiering

import "math"

// SourceWeight maps a memory's source to its weight in the importance
// formula.
func SourceWeight(source string) float64 {
	switch source {
	case "user":
		return 1.0
	case "consolidation":
		return 0.8
	case "extraction":
		return 0.7
	case "session-summary":
		return 0.6
	case "automation", "hook", "":
		return 0.5
	default:
		return 0.5
	}
}

// TypeWeight maps a memory's type to its weight in the importance formula.
func TypeWeight(memoryType string) float64 {
	switch memoryType {
	case "rule":
		return 1.0
	case "mistake":
		return 0.9
	case "learning":
		return 0.8
	case "preference", "objective":
		return 0.7
	case "general":
		return 0.6
	case "episode":
		return 0.5
	default:
		return 0.5
	}
}

// RecencyFactor computes 0.5^(days/30), clamped to [0.1, 1.0].
func RecencyFactor(daysSinceLastAccess float64) float64 {
	f := math.Pow(0.5, daysSinceLastAccess/30.0)
	if f < 0.1 {
		return 0.1
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}

// AccessFactor computes min(1.0, 0.5 + 0.1*log2(1+accessCount)).
func AccessFactor(accessCount int) float64 {
	f := 0.5 + 0.1*math.Log2(1+float64(accessCount))
	if f > 1.0 {
		return 1.0
	}
	return f
}

// Importance computes source_weight*type_weight*recency_factor*access_factor,
// clamped to [0,1], then floored at 0.9 if isRule.
func Importance(source, memoryType string, daysSinceLastAccess float64, accessCount int, isRule bool) float64 {
	score := SourceWeight(source) * TypeWeight(memoryType) * RecencyFactor(daysSinceLastAccess) * AccessFactor(accessCount)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if isRule && score < 0.9 {
		score = 0.9
	}
	return score
}
