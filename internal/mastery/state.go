// Package mastery holds the answer submission state machine and the reading level aggregator.
// It performs no I/O.
package mastery

import (
	"fmt"
	"math"

	"github.com/lunareading/backend/internal/models"
)

// DefaultSufficiencyThreshold is the score at or above which an answer counts as sufficient
const DefaultSufficiencyThreshold = 0.7

// legalSubmissions is the transition table: submission types accepted in each non-terminal state
var legalSubmissions = map[models.QuestionState][]models.SubmissionType{
	models.StateNotAttempted:          {models.SubmissionInitial},
	models.StateAwaitingFirstFeedback: {},
	models.StateAwaitingRetry:         {models.SubmissionRetry, models.SubmissionFinal},
	models.StateSufficient:            {},
	models.StateFinalized:             {},
}

// Machine decides the state of a question from its submissions
type Machine struct {
	threshold float64
}

// NewMachine creates a state machine with the given sufficiency threshold
func NewMachine(threshold float64) *Machine {
	return &Machine{threshold: threshold}
}

// Threshold returns the sufficiency threshold
func (m *Machine) Threshold() float64 {
	return m.threshold
}

// IsSufficient reports whether the score meets the sufficiency threshold
func (m *Machine) IsSufficient(score float64) bool {
	return score >= m.threshold
}

// IsTerminal reports whether no further submission is accepted in the state
func IsTerminal(state models.QuestionState) bool {
	return state == models.StateSufficient || state == models.StateFinalized
}

// ParseSubmissionType converts raw input into a known submission type
func ParseSubmissionType(raw string) (models.SubmissionType, error) {
	t := models.SubmissionType(raw)
	switch t {
	case models.SubmissionInitial, models.SubmissionRetry, models.SubmissionFinal:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown submission type %q", ErrInvalidSubmissionOrder, raw)
}

// LegalSubmissions returns the submission types accepted in the state
func LegalSubmissions(state models.QuestionState) []models.SubmissionType {
	legal := legalSubmissions[state]
	out := make([]models.SubmissionType, len(legal))
	copy(out, legal)
	return out
}

// Check returns an error unless a submission of type t is legal in the state
func Check(state models.QuestionState, t models.SubmissionType) error {
	if IsTerminal(state) {
		return fmt.Errorf("%w: question is %s", ErrQuestionAlreadyComplete, state)
	}

	legal, known := legalSubmissions[state]
	if !known {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidSubmissionOrder, state)
	}
	for _, allowed := range legal {
		if allowed == t {
			return nil
		}
	}

	if state == models.StateAwaitingFirstFeedback {
		return fmt.Errorf("%w: first answer is still being evaluated", ErrInvalidSubmissionOrder)
	}
	return fmt.Errorf("%w: %q is not allowed while question is %s", ErrInvalidSubmissionOrder, t, state)
}

// Begin validates a submission and returns the state the question holds while it is being evaluated
func Begin(state models.QuestionState, t models.SubmissionType) (models.QuestionState, error) {
	if err := Check(state, t); err != nil {
		return "", err
	}
	if state == models.StateNotAttempted {
		return models.StateAwaitingFirstFeedback, nil
	}
	return state, nil
}

// Resolve returns the state after the evaluator has scored a submission begun in the pending state.
// A final submission always finalizes the question. Otherwise a sufficient answer completes it.
func Resolve(pending models.QuestionState, t models.SubmissionType, sufficient bool) (models.QuestionState, error) {
	switch pending {
	case models.StateAwaitingFirstFeedback:
		if t != models.SubmissionInitial {
			return "", fmt.Errorf("%w: %q resolved as a first answer", ErrInvalidSubmissionOrder, t)
		}
	case models.StateAwaitingRetry:
		if t == models.SubmissionInitial {
			return "", fmt.Errorf("%w: %q resolved as a retry", ErrInvalidSubmissionOrder, t)
		}
	default:
		if err := Check(pending, t); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: no evaluation pending while question is %s", ErrInvalidSubmissionOrder, pending)
	}

	switch {
	case t == models.SubmissionFinal:
		return models.StateFinalized, nil
	case sufficient:
		return models.StateSufficient, nil
	default:
		return models.StateAwaitingRetry, nil
	}
}

// Next applies a scored submission of type t to the state
func (m *Machine) Next(state models.QuestionState, t models.SubmissionType, score float64) (models.QuestionState, error) {
	pending, err := Begin(state, t)
	if err != nil {
		return "", err
	}
	return Resolve(pending, t, m.IsSufficient(score))
}

// DeriveState replays an answer log, oldest first, and returns the resulting state.
// Each answer is replayed with the sufficiency recorded when it was stored,
// so a later threshold change does not rewrite history.
func DeriveState(history []models.Answer) (models.QuestionState, error) {
	state := models.StateNotAttempted
	for i, answer := range history {
		pending, err := Begin(state, answer.SubmissionType)
		if err != nil {
			return "", fmt.Errorf("%w: answer %d: %v", ErrCorruptHistory, i+1, err)
		}
		state, err = Resolve(pending, answer.SubmissionType, answer.IsSufficient)
		if err != nil {
			return "", fmt.Errorf("%w: answer %d: %v", ErrCorruptHistory, i+1, err)
		}
	}
	return state, nil
}

// ValidateEvaluation rejects evaluator output that cannot be recorded
func ValidateEvaluation(e *models.Evaluation) error {
	if e == nil {
		return fmt.Errorf("%w: empty evaluation", ErrEvaluatorFailure)
	}
	if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
		return fmt.Errorf("%w: score is not a number", ErrEvaluatorFailure)
	}
	if e.Score < 0 || e.Score > 1 {
		return fmt.Errorf("%w: score %v outside [0, 1]", ErrEvaluatorFailure, e.Score)
	}
	if e.Rating != nil && (*e.Rating < 1 || *e.Rating > 5) {
		return fmt.Errorf("%w: rating %d outside 1..5", ErrEvaluatorFailure, *e.Rating)
	}
	return nil
}
