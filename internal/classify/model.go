package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/newsmill/newsmill/internal/simhash"
)

// Model is a bag-of-words linear text classifier loaded from a JSON
// artifact produced by offline training. Each class has one weight per
// vocabulary term plus a bias; the highest-scoring class wins.
type Model struct {
	Classes    []string       `json:"classes"`
	Vocabulary map[string]int `json:"vocabulary"`
	Weights    [][]float64    `json:"weights"`
	Bias       []float64      `json:"bias"`
}

// LoadModel reads and validates a model artifact.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model artifact: %w", err)
	}
	if len(m.Classes) == 0 {
		return nil, fmt.Errorf("model artifact has no classes")
	}
	if len(m.Weights) != len(m.Classes) || len(m.Bias) != len(m.Classes) {
		return nil, fmt.Errorf("model artifact shape mismatch: %d classes, %d weight rows, %d biases",
			len(m.Classes), len(m.Weights), len(m.Bias))
	}
	for i, row := range m.Weights {
		if len(row) != len(m.Vocabulary) {
			return nil, fmt.Errorf("weight row %d has %d terms, vocabulary has %d", i, len(row), len(m.Vocabulary))
		}
	}
	return &m, nil
}

// Predict scores text against every class and returns the winner. The
// second return is false when no vocabulary term appears in the text or
// no class scores positive, meaning the model abstains.
func (m *Model) Predict(text string) (string, bool) {
	counts := make(map[int]int)
	for _, token := range simhash.Tokenize(text) {
		if idx, ok := m.Vocabulary[token]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}

	// Accumulate in index order: float addition order must not depend on
	// map iteration, or identical text could score differently across runs.
	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	bestClass, bestScore := -1, 0.0
	for c := range m.Classes {
		score := m.Bias[c]
		for _, idx := range indices {
			score += m.Weights[c][idx] * float64(counts[idx])
		}
		// Ties resolve to the lower class index for determinism.
		if bestClass == -1 || score > bestScore {
			bestClass, bestScore = c, score
		}
	}
	if bestScore <= 0 {
		return "", false
	}
	return m.Classes[bestClass], true
}
