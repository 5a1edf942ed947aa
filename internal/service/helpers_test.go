package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// testLogger returns a quiet logger so test output stays readable.
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// phq9 builds the PHQ-9 depression instrument: nine 0-3 items, sum scored,
// documented total range [0,27].
func phq9() *domain.Instrument {
	questions := make([]domain.Question, 0, 9)
	for i := 1; i <= 9; i++ {
		questions = append(questions, domain.Question{
			ID:       fmt.Sprintf("phq9_q%d", i),
			Text:     fmt.Sprintf("PHQ-9 item %d", i),
			Type:     domain.LikertScale,
			Scorable: true,
			Scale:    &domain.ScaleConstraints{Min: 0, Max: 3, Step: 1},
		})
	}
	return &domain.Instrument{
		ID:        "phq9",
		Name:      "Patient Health Questionnaire-9",
		Version:   1,
		Method:    domain.ScoringSum,
		Questions: questions,
		Range:     domain.ClinicalRange{Min: 0, Max: 27},
	}
}

// gad7 builds the GAD-7 anxiety instrument: seven 0-3 items, range [0,21].
func gad7() *domain.Instrument {
	questions := make([]domain.Question, 0, 7)
	for i := 1; i <= 7; i++ {
		questions = append(questions, domain.Question{
			ID:       fmt.Sprintf("gad7_q%d", i),
			Text:     fmt.Sprintf("GAD-7 item %d", i),
			Type:     domain.LikertScale,
			Scorable: true,
			Scale:    &domain.ScaleConstraints{Min: 0, Max: 3, Step: 1},
		})
	}
	return &domain.Instrument{
		ID:        "gad7",
		Name:      "Generalized Anxiety Disorder-7",
		Version:   1,
		Method:    domain.ScoringSum,
		Questions: questions,
		Range:     domain.ClinicalRange{Min: 0, Max: 21},
	}
}

// uniformResponses answers every question of the instrument with the same
// numeric value.
func uniformResponses(ins *domain.Instrument, value float64) []domain.Response {
	responses := make([]domain.Response, 0, len(ins.Questions))
	for i := range ins.Questions {
		responses = append(responses, domain.Response{
			QuestionID: ins.Questions[i].ID,
			Value:      value,
		})
	}
	return responses
}
