package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

const evaluationTemperature = 0.3

// evaluationReply is the JSON shape the model is asked for. Score is a pointer so a missing score is detected.
type evaluationReply struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
	Examples []string `json:"examples"`
	Rating   *int     `json:"rating"`
}

// Evaluate grades an answer. The returned evaluation is not range checked.
func (c *Client) Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.Evaluation, error) {
	prompt, err := buildEvaluationPrompt(req)
	if err != nil {
		return nil, err
	}

	reply, err := c.complete(ctx, prompt, evaluationTemperature)
	if err != nil {
		return nil, err
	}

	evaluation, err := parseEvaluation(reply)
	if err != nil {
		c.logger.Warn("unparseable evaluation reply", zap.Error(err), zap.String("reply", truncate(reply, 500)))
		return nil, err
	}

	return evaluation, nil
}

func parseEvaluation(reply string) (*models.Evaluation, error) {
	cleaned, err := cleanJSON(reply)
	if err != nil {
		return nil, err
	}

	var parsed evaluationReply
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Score == nil {
		return nil, fmt.Errorf("%w: score is missing", ErrMalformedResponse)
	}

	return &models.Evaluation{
		Score:    *parsed.Score,
		Rating:   parsed.Rating,
		Feedback: strings.TrimSpace(parsed.Feedback),
		Examples: parsed.Examples,
	}, nil
}

func buildEvaluationPrompt(req models.EvaluationRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "A grade %d student is reading \"%s\", %s.\n\n", req.GradeLevel, req.BookTitle, req.Chapter)
	fmt.Fprintf(&b, "Question: %s\n", req.QuestionText)
	if req.ModelAnswer != "" {
		fmt.Fprintf(&b, "Reference answer: %s\n", req.ModelAnswer)
	}
	if req.PreviousAnswer != nil {
		fmt.Fprintf(&b, "Previous answer: %s\n", req.PreviousAnswer.AnswerText)
		if req.PreviousAnswer.Feedback != "" {
			fmt.Fprintf(&b, "Feedback on the previous answer: %s\n", req.PreviousAnswer.Feedback)
		}
	}
	fmt.Fprintf(&b, "Student answer: %s\n\n", req.AnswerText)

	b.WriteString("Grade the student answer for comprehension, accuracy and completeness. ")
	b.WriteString("\"score\" is a number from 0.0 to 1.0 and \"feedback\" is short and encouraging.\n")

	switch req.SubmissionType {
	case models.SubmissionInitial:
		b.WriteString("Also give two or three \"examples\" of strong answers that show the structure with blanks ")
		b.WriteString("left for details the student should fill in. Do not give a rating.\n")
		b.WriteString(`Reply as {"score": 0.6, "feedback": "...", "examples": ["..."]}`)
	case models.SubmissionRetry:
		threshold := req.Threshold
		if threshold <= 0 {
			threshold = mastery.DefaultSufficiencyThreshold
		}
		fmt.Fprintf(&b, "Compare with the previous answer. Give a \"rating\" from 1 to 5 only if the score is %g or higher, otherwise null.\n", threshold)
		b.WriteString(`Reply as {"score": 0.8, "feedback": "...", "rating": 4}`)
	case models.SubmissionFinal:
		b.WriteString("This is the final answer. Always give a \"rating\" from 1 to 5.\n")
		b.WriteString(`Reply as {"score": 0.8, "feedback": "...", "rating": 4}`)
	default:
		return "", fmt.Errorf("unknown submission type %q", req.SubmissionType)
	}

	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
