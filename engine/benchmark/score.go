package benchmark

import (
	gomath "math"
)

const (
	targetFPS         = 60.0
	fpsTermMax        = 400.0
	fpsWeight         = 0.4
	stabilityTermMax  = 300.0
	stabilityWeight   = 0.3
	complexityTermMax = 300.0
	complexityWeight  = 0.3
)

type Grade string

const (
	GradeSPlus Grade = "S+"
	GradeS     Grade = "S"
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

var gradeThresholds = []struct {
	min   int
	grade Grade
}{
	{800, GradeSPlus},
	{700, GradeS},
	{600, GradeAPlus},
	{500, GradeA},
	{400, GradeBPlus},
	{300, GradeB},
	{200, GradeCPlus},
	{100, GradeC},
}

// GradeFor maps a score to its grade. Thresholds are inclusive on the lower end.
func GradeFor(score int) Grade {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return GradeD
}

// Stability is 1 - std/avg of the frame time. It may exceed 1 or go negative.
func Stability(frameTime AggregatedStat) (float64, bool) {
	if frameTime.Average <= 0 {
		return 0, false
	}
	return 1 - frameTime.StandardDeviation/frameTime.Average, true
}

/**
 * @brief Combines the session statistics into one number.
 *  - fps:        min(avgFps/60*400, 400) * 0.4
 *  - stability:  max((1 - std/avg frame time)*300, 0) * 0.3, no upper clamp
 *  - complexity: min(avgTriangles/1000 * avgFps/60 * 300, 300) * 0.3
 * A missing dimension contributes nothing. The sum is rounded to the nearest integer.
 */
func Score(metrics map[Dimension]AggregatedStat) int {
	score := 0.0

	fps, hasFPS := metrics[DimensionFPS]
	if hasFPS {
		score += gomath.Min(fps.Average/targetFPS*fpsTermMax, fpsTermMax) * fpsWeight
	}

	if frameTime, ok := metrics[DimensionFrameTime]; ok {
		if stability, ok := Stability(frameTime); ok {
			score += gomath.Max(stability*stabilityTermMax, 0) * stabilityWeight
		}
	}

	if triangles, ok := metrics[DimensionTriangles]; ok && hasFPS {
		complexity := (triangles.Average / 1000) * (fps.Average / targetFPS) * complexityTermMax
		score += gomath.Min(complexity, complexityTermMax) * complexityWeight
	}

	return int(gomath.Round(score))
}
