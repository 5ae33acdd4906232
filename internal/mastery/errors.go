package mastery

import "errors"

var (
	// ErrEmptyAnswer is returned for an answer that is empty after trimming whitespace
	ErrEmptyAnswer = errors.New("answer text cannot be empty")
	// ErrInvalidSubmissionOrder is returned when the submission type is not legal in the question's state
	ErrInvalidSubmissionOrder = errors.New("invalid submission order")
	// ErrQuestionAlreadyComplete is returned for any submission to a question in a terminal state
	ErrQuestionAlreadyComplete = errors.New("question already complete")
	// ErrEvaluatorFailure is returned when the evaluator is unreachable or returned malformed data.
	// Nothing is persisted and the submission may be retried.
	ErrEvaluatorFailure = errors.New("answer evaluation failed")
	// ErrPersistenceConflict is returned when another submission for the same question won the race
	ErrPersistenceConflict = errors.New("question was answered concurrently")
	// ErrReadingLevelUpdateFailure is returned when the reading level could not be recomputed.
	// The recorded answer stays in place.
	ErrReadingLevelUpdateFailure = errors.New("reading level update failed")
	// ErrCorruptHistory is returned when a stored answer log cannot be replayed through the state machine
	ErrCorruptHistory = errors.New("answer history is inconsistent")
)
