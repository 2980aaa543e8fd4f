package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-chat-ai-api/internal/domain/entity"
)

func newTestQuestion() *entity.Question {
	return &entity.Question{
		ID:             "question-1",
		ConversationID: "conv-1",
		JobID:          "job-1",
		Message:        "how do I pay my corporation tax",
	}
}

func TestDispatchCompletes(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	cancels := &fakeCancelStore{}
	answers := &fakeAnswerRepo{}
	d := NewDispatcher(broadcaster, cancels, answers, newPipelineConfig())

	question := newTestQuestion()
	draft := entity.NewAnswer(question.ID)
	draft.Message = "Pay online today."
	draft.Sources = []*entity.Source{{URL: "https://example.org", Title: "Pay", Position: 0}}

	err := d.Dispatch(context.Background(), "conv-1", question, draft)
	require.NoError(t, err)

	// 三个词块加一个结束事件
	require.Len(t, broadcaster.events, 4)
	assert.Equal(t, "conv-1", broadcaster.conversationID)

	chunk, ok := broadcaster.events[0].(*ChunkEvent)
	require.True(t, ok)
	assert.Equal(t, "question-1", chunk.QuestionID)
	assert.Equal(t, "Pay ", chunk.Message)

	finished, ok := broadcaster.events[3].(*FinishedEvent)
	require.True(t, ok)
	assert.True(t, finished.Finished)

	// 词块拼回完整正文
	var rebuilt string
	for _, ev := range broadcaster.events[:3] {
		rebuilt += ev.(*ChunkEvent).Message
	}
	assert.Equal(t, "Pay online today.", rebuilt)

	// 终态一次性写入
	require.NotNil(t, answers.created)
	assert.Equal(t, entity.AnswerStatusCompleted, answers.created.Status)
	assert.False(t, answers.created.Cancelled)
	assert.Len(t, answers.created.Sources, 1)
}

func TestDispatchCancelledMidStream(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	cancels := &fakeCancelStore{cancelAfterPolls: 2}
	answers := &fakeAnswerRepo{}
	d := NewDispatcher(broadcaster, cancels, answers, newPipelineConfig())

	question := newTestQuestion()
	draft := entity.NewAnswer(question.ID)
	draft.Message = "Pay online or by bank transfer."
	draft.Sources = []*entity.Source{{URL: "https://example.org", Title: "Pay", Position: 0}}

	err := d.Dispatch(context.Background(), "conv-1", question, draft)
	require.NoError(t, err)

	// 两个词块后终止，最后一个事件是取消事件
	require.Len(t, broadcaster.events, 3)
	cancelled, ok := broadcaster.events[2].(*CancelledEvent)
	require.True(t, ok)
	assert.True(t, cancelled.Cancelled)
	require.NotNil(t, cancelled.Message)
	assert.Equal(t, "Pay online", *cancelled.Message)

	// 取消终态：部分正文、无来源
	require.NotNil(t, answers.created)
	assert.Equal(t, entity.AnswerStatusCancelled, answers.created.Status)
	assert.True(t, answers.created.Cancelled)
	assert.Equal(t, "Pay online", answers.created.Message)
	assert.Nil(t, answers.created.Sources)
}

func TestDispatchCancelledBeforeFirstChunk(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	cancels := &fakeCancelStore{flag: true}
	answers := &fakeAnswerRepo{}
	d := NewDispatcher(broadcaster, cancels, answers, newPipelineConfig())

	question := newTestQuestion()
	draft := entity.NewAnswer(question.ID)
	draft.Message = "Pay online."

	err := d.Dispatch(context.Background(), "conv-1", question, draft)
	require.NoError(t, err)

	// 没有词块下发，取消事件的 message 为 null
	require.Len(t, broadcaster.events, 1)
	cancelled, ok := broadcaster.events[0].(*CancelledEvent)
	require.True(t, ok)
	assert.Nil(t, cancelled.Message)

	assert.Equal(t, "", answers.created.Message)
	assert.True(t, answers.created.Cancelled)
}

func TestDispatchNilDraft(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}
	d := NewDispatcher(broadcaster, &fakeCancelStore{}, answers, newPipelineConfig())

	err := d.Dispatch(context.Background(), "conv-1", newTestQuestion(), nil)
	require.NoError(t, err)

	require.Len(t, broadcaster.events, 1)
	nullAnswer, ok := broadcaster.events[0].(*NullAnswerEvent)
	require.True(t, ok)
	assert.Nil(t, nullAnswer.Answer)

	// 未产出回答时不写库
	assert.Nil(t, answers.created)
}
