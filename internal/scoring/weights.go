package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights 表示权重无法归一化（全零、负数或空集合）。
var ErrInvalidWeights = errors.New("weights must be non-negative with a positive sum")

// DefaultWeights returns the stock criteria map offered to new jobs.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"experience": 0.35,
		"skills":     0.30,
		"education":  0.15,
		"portfolio":  0.15,
		"location":   0.05,
	}
}

// Normalize 将任意正权重按比例缩放为总和为 1 的权重表（保留 4 位小数）。
// Normalizing an already-normalized map is a no-op within rounding tolerance.
func Normalize(weights map[string]float64) (map[string]float64, error) {
	if len(weights) == 0 {
		return nil, ErrInvalidWeights
	}

	var total float64
	for k, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %q: %w", k, ErrInvalidWeights)
		}
		total += w
	}
	if total <= 0 {
		return nil, ErrInvalidWeights
	}

	normalized := make(map[string]float64, len(weights))
	for k, w := range weights {
		normalized[k] = math.Round(w/total*10000) / 10000
	}
	return normalized, nil
}

// Subscore is the per-criterion result the parser reports back.
type Subscore struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ValidateSubscores 校验解析服务回写的分项结构：每个条目必须对应职位已配置
// 的评分维度，且分值落在 [0,1] 区间。
func ValidateSubscores(subscores map[string]Subscore, criteria map[string]float64) error {
	for name, sub := range subscores {
		if _, ok := criteria[name]; len(criteria) > 0 && !ok {
			return fmt.Errorf("unknown criterion %q", name)
		}
		if sub.Score < 0 || sub.Score > 1 || math.IsNaN(sub.Score) {
			return fmt.Errorf("criterion %q: score %v outside [0,1]", name, sub.Score)
		}
	}
	return nil
}
