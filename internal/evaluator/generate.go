package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

const generationTemperature = 0.7

// GenerationRequest describes the questions to generate for a session
type GenerationRequest struct {
	BookTitle  string
	Chapter    string
	GradeLevel int
	Count      int
}

// Generate asks the model for comprehension questions with reference answers
func (c *Client) Generate(ctx context.Context, req GenerationRequest) ([]models.GeneratedQuestion, error) {
	prompt := fmt.Sprintf(
		"Write %d reading comprehension questions for a grade %d student about \"%s\", %s. "+
			"Mix recall, inference and vocabulary questions suitable for the grade. "+
			"For each question include a short model answer. "+
			`Reply as {"questions": [{"question": "...", "model_answer": "..."}]}`,
		req.Count, req.GradeLevel, req.BookTitle, req.Chapter,
	)

	reply, err := c.complete(ctx, prompt, generationTemperature)
	if err != nil {
		return nil, err
	}

	questions, err := parseQuestions(reply)
	if err != nil {
		c.logger.Warn("unparseable question reply", zap.Error(err), zap.String("reply", truncate(reply, 500)))
		return nil, err
	}

	return questions, nil
}

// parseQuestions accepts either {"questions": [...]} or a bare array
func parseQuestions(reply string) ([]models.GeneratedQuestion, error) {
	cleaned, err := cleanJSON(reply)
	if err != nil {
		return nil, err
	}

	var questions []models.GeneratedQuestion
	if strings.HasPrefix(cleaned, "[") {
		err = json.Unmarshal([]byte(cleaned), &questions)
	} else {
		var wrapped struct {
			Questions []models.GeneratedQuestion `json:"questions"`
		}
		err = json.Unmarshal([]byte(cleaned), &wrapped)
		questions = wrapped.Questions
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := make([]models.GeneratedQuestion, 0, len(questions))
	for _, q := range questions {
		q.QuestionText = strings.TrimSpace(q.QuestionText)
		q.ModelAnswer = strings.TrimSpace(q.ModelAnswer)
		if q.QuestionText == "" {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no questions returned", ErrMalformedResponse)
	}

	return out, nil
}
