package services

import (
	"math"

	"github.com/Sayat07/hacklive-system/models"
)

const (
	minSubScore = 0
	maxSubScore = 10
)

// ValidateSubScores проверяет, что каждая из четырёх оценок в диапазоне 0..10.
func ValidateSubScores(scores models.SubScores) error {
	for _, s := range []int{scores.Viability, scores.Innovation, scores.Pitch, scores.Demo} {
		if s < minSubScore || s > maxSubScore {
			return ErrScoreOutOfRange
		}
	}
	return nil
}

// WeightedScore считает скалярное произведение оценок и весов,
// округлённое до двух знаков. Значение фиксируется в момент записи голоса.
func WeightedScore(scores models.SubScores, weights models.VotingWeights) float64 {
	raw := float64(scores.Viability)*weights.Viability +
		float64(scores.Innovation)*weights.Innovation +
		float64(scores.Pitch)*weights.Pitch +
		float64(scores.Demo)*weights.Demo
	return math.Round(raw*100) / 100
}

// ValidateWeights проверяет веса, выставляемые админом: неотрицательные,
// сумма близка к 1.0 (допуск на плавающую точку).
func ValidateWeights(w models.VotingWeights) error {
	values := []float64{w.Viability, w.Innovation, w.Pitch, w.Demo}
	sum := 0.0
	for _, v := range values {
		if v < 0 {
			return ErrWeightsInvalid
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 0.01 {
		return ErrWeightsInvalid
	}
	return nil
}
