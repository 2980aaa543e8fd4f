package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"z-chat-ai-api/internal/domain/entity"
)

func answeredQuestion(message, rephrased, answer string) *entity.Question {
	return &entity.Question{
		Message: message,
		Answer: &entity.Answer{
			Message:           answer,
			RephrasedQuestion: rephrased,
		},
	}
}

func TestBuildHistory(t *testing.T) {
	questions := []*entity.Question{
		answeredQuestion("what is corporation tax", "", "Corporation Tax is a tax on company profits."),
		answeredQuestion("how do I pay it", "How do I pay Corporation Tax?", "You can pay online."),
	}

	history := BuildHistory(questions, 10)
	expected := "user: what is corporation tax\n" +
		"assistant: Corporation Tax is a tax on company profits.\n" +
		"user: How do I pay Corporation Tax?\n" +
		"assistant: You can pay online."
	assert.Equal(t, expected, history)
}

func TestBuildHistorySkipsUnanswered(t *testing.T) {
	questions := []*entity.Question{
		answeredQuestion("first", "", "first answer"),
		{Message: "pending"},
		nil,
	}

	history := BuildHistory(questions, 10)
	assert.Equal(t, "user: first\nassistant: first answer", history)
}

func TestBuildHistoryKeepsMostRecentTurns(t *testing.T) {
	questions := []*entity.Question{
		answeredQuestion("q1", "", "a1"),
		answeredQuestion("q2", "", "a2"),
		answeredQuestion("q3", "", "a3"),
	}

	history := BuildHistory(questions, 2)
	assert.Equal(t, "user: q3\nassistant: a3", history)
}

func TestBuildHistoryEmpty(t *testing.T) {
	assert.Equal(t, "", BuildHistory(nil, 10))
	assert.Equal(t, "", BuildHistory([]*entity.Question{{Message: "pending"}}, 10))
}
