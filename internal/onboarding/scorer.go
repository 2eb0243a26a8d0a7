// Package onboarding infers whether a new user is a client or a hustler from
// their questionnaire answers.
package onboarding

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

// Role is the inferred marketplace role.
type Role string

const (
	RoleClient  Role = "CLIENT"
	RoleHustler Role = "HUSTLER"
)

// Confidence grades how clearly the answers point at one role.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Margin thresholds for the confidence tiers.
const (
	highMargin   = 0.6
	mediumMargin = 0.3
)

// Points is the contribution of one answer.
type Points struct {
	Client  int `yaml:"client"`
	Hustler int `yaml:"hustler"`
}

// Weights maps question -> answer -> points.
type Weights struct {
	Questions map[string]map[string]Points `yaml:"questions"`
}

// Response is one answered question.
type Response struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

// Inference is the scorer's result.
type Inference struct {
	Role         Role       `json:"role"`
	Confidence   Confidence `json:"confidence"`
	ClientScore  int        `json:"client_score"`
	HustlerScore int        `json:"hustler_score"`
	// Answered counts responses that matched a known question and answer.
	Answered int `json:"answered"`
}

//go:embed weights.yaml
var defaultWeights []byte

var ErrInvalidWeights = errors.New("invalid onboarding weights")

// LoadWeights decodes and validates a YAML weight table.
func LoadWeights(r io.Reader) (Weights, error) {
	var w Weights
	if err := yaml.NewDecoder(r).Decode(&w); err != nil {
		return Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Validate rejects empty tables and negative points.
func (w Weights) Validate() error {
	if len(w.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidWeights)
	}
	for q, answers := range w.Questions {
		if len(answers) == 0 {
			return fmt.Errorf("%w: question %q has no answers", ErrInvalidWeights, q)
		}
		for a, p := range answers {
			if p.Client < 0 || p.Hustler < 0 {
				return fmt.Errorf("%w: %s/%s has negative points", ErrInvalidWeights, q, a)
			}
		}
	}
	return nil
}

// Scorer infers roles from responses. It is safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer over validated weights.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// DefaultScorer returns a scorer over the embedded weight table.
func DefaultScorer() *Scorer {
	w, err := LoadWeights(bytes.NewReader(defaultWeights))
	if err != nil {
		panic(fmt.Sprintf("onboarding: embedded weights: %v", err))
	}
	return &Scorer{weights: w}
}

// Infer scores responses. Unknown questions or answers are ignored; a question
// answered more than once counts only its first answer. Ties, including no
// usable answers, resolve to HUSTLER with LOW confidence.
func (s *Scorer) Infer(responses []Response) Inference {
	var res Inference
	seen := make(map[string]bool, len(responses))

	for _, r := range responses {
		if seen[r.QuestionID] {
			continue
		}
		answers, ok := s.weights.Questions[r.QuestionID]
		if !ok {
			continue
		}
		p, ok := answers[r.AnswerID]
		if !ok {
			continue
		}
		seen[r.QuestionID] = true
		res.Answered++
		res.ClientScore += p.Client
		res.HustlerScore += p.Hustler
	}

	total := res.ClientScore + res.HustlerScore
	if res.ClientScore > res.HustlerScore {
		res.Role = RoleClient
	} else {
		res.Role = RoleHustler
	}
	if total == 0 || res.ClientScore == res.HustlerScore {
		res.Confidence = ConfidenceLow
		return res
	}

	margin := math.Abs(float64(res.ClientScore-res.HustlerScore)) / float64(total)
	switch {
	case margin >= highMargin:
		res.Confidence = ConfidenceHigh
	case margin >= mediumMargin:
		res.Confidence = ConfidenceMedium
	default:
		res.Confidence = ConfidenceLow
	}
	return res
}
