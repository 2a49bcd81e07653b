// Package modelconfig reads the label metadata shipped next to a
// classification model (config.json) and turns logits into labelled scores.
package modelconfig

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/ariannamethod/yentkit/kernels"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// Problem types as written by Hugging Face exporters.
const (
	SingleLabel = "single_label_classification"
	MultiLabel  = "multi_label_classification"
	Regression  = "regression"
)

// ErrUnknownLabel is returned for an index with no id2label entry.
var ErrUnknownLabel = errors.New("unknown label")

type rawConfig struct {
	ID2Label    map[string]string `json:"id2label"`
	Label2ID    map[string]int    `json:"label2id"`
	ProblemType string            `json:"problem_type"`
}

// Config is the parsed label metadata. Immutable.
type Config struct {
	labels      map[int]string
	ids         map[string]int
	problemType string
}

// Prediction is one ranked, labelled output.
type Prediction struct {
	Index int
	Label string
	Score float32
}

// Read parses config.json content.
func Read(r io.Reader) (*Config, error) {
	var raw rawConfig
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "model config")
	}
	switch raw.ProblemType {
	case "", SingleLabel, MultiLabel, Regression:
	default:
		return nil, errors.Errorf("model config: unknown problem_type %q", raw.ProblemType)
	}

	c := &Config{
		labels:      make(map[int]string, len(raw.ID2Label)),
		ids:         make(map[string]int, len(raw.ID2Label)),
		problemType: raw.ProblemType,
	}
	for key, label := range raw.ID2Label {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, errors.Errorf("model config: id2label key %q is not a non-negative integer", key)
		}
		c.labels[idx] = label
		c.ids[label] = idx
	}
	for label, idx := range raw.Label2ID {
		if idx < 0 {
			return nil, errors.Errorf("model config: label2id %q has negative index %d", label, idx)
		}
		if have, ok := c.labels[idx]; ok && have != label {
			return nil, errors.Errorf("model config: index %d is %q in id2label but %q in label2id", idx, have, label)
		}
		if _, ok := c.labels[idx]; !ok {
			c.labels[idx] = label
		}
		c.ids[label] = idx
	}
	log.Debug("Loaded model config", "labels", len(c.labels), "problem", c.problemType)
	return c, nil
}

// Load reads a config.json from disk.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "model config")
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

// NumLabels is the number of distinct label indices.
func (c *Config) NumLabels() int { return len(c.labels) }

// ProblemType is the raw problem_type, possibly empty.
func (c *Config) ProblemType() string { return c.problemType }

// Label maps an output index to its name.
func (c *Config) Label(index int) (string, error) {
	l, ok := c.labels[index]
	if !ok {
		return "", errors.Wrapf(ErrUnknownLabel, "index %d", index)
	}
	return l, nil
}

// Index maps a label name back to its output index.
func (c *Config) Index(label string) (int, bool) {
	i, ok := c.ids[label]
	return i, ok
}

// Labels lists label names in index order.
func (c *Config) Labels() []string {
	idx := make([]int, 0, len(c.labels))
	for i := range c.labels {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for n, i := range idx {
		out[n] = c.labels[i]
	}
	return out
}

// Activation picks the score function for the problem type. Without an
// explicit type a single logit is treated as binary (sigmoid) and anything
// wider as single-label (softmax).
func (c *Config) Activation() kernels.Activation {
	switch c.problemType {
	case SingleLabel:
		return kernels.ActivationSoftmax
	case MultiLabel:
		return kernels.ActivationSigmoid
	case Regression:
		return kernels.ActivationNone
	}
	if len(c.labels) == 1 {
		return kernels.ActivationSigmoid
	}
	return kernels.ActivationSoftmax
}

// Classify activates logits and returns the k best labelled predictions.
// Every logit must have a label.
func (c *Config) Classify(logits []float32, k int) ([]Prediction, error) {
	scores := c.Activation().Apply(logits)
	top := kernels.TopK(scores, k)
	out := make([]Prediction, 0, len(top))
	for _, i := range top {
		label, err := c.Label(i)
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{Index: i, Label: label, Score: scores[i]})
	}
	return out, nil
}
