package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-chat-ai-api/internal/application/guardrails"
	"z-chat-ai-api/internal/application/retrieval"
	"z-chat-ai-api/internal/domain/entity"
)

type staticEmbedder struct{}

func (staticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type staticIndex struct {
	hits []*retrieval.ChunkHit
}

func (s *staticIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]*retrieval.ChunkHit, error) {
	return s.hits, nil
}

func newTestService(chatModel *scriptedChatModel, index *staticIndex, questions *fakeQuestionRepo, broadcaster *fakeBroadcaster, answers *fakeAnswerRepo) *Service {
	cfg := newPipelineConfig()
	factory := &fakeFactory{chatModel: chatModel}

	return NewService(
		questions,
		guardrails.NewEvaluator(factory, cfg),
		NewRephraser(factory, cfg),
		retrieval.NewRetriever(staticEmbedder{}, index, cfg),
		retrieval.NewReranker(cfg),
		NewComposer(factory, cfg),
		NewDispatcher(broadcaster, &fakeCancelStore{}, answers, cfg),
		cfg,
	)
}

func guideHit(id, docType, url string, score float64) *retrieval.ChunkHit {
	return &retrieval.ChunkHit{
		ID:    id,
		Score: score,
		Fields: map[string]interface{}{
			"document_type": docType,
			"title":         "Corporation Tax",
			"url":           url,
			"plain_content": "Pay your Corporation Tax bill online or by bank transfer.",
		},
	}
}

func TestRunComposesAndStreamsAnswer(t *testing.T) {
	question := newTestQuestion()
	questions := &fakeQuestionRepo{question: question}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}

	// 原始分更低的 guide 凭类型权重排到第一
	index := &staticIndex{hits: []*retrieval.ChunkHit{
		{ID: "manual-1", Score: 1.5, Fields: map[string]interface{}{
			"document_type": "manual",
			"title":         "Internal manual",
			"url":           "https://example.org/manual",
			"plain_content": "Staff guidance.",
		}},
		guideHit("guide-1", "guide", "https://example.org/pay-corporation-tax", 0.8),
	}}

	chatModel := &scriptedChatModel{responses: []string{
		"False", // 输入护栏放行
		"Pay your Corporation Tax online [1].",
	}}

	svc := newTestService(chatModel, index, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, answers.created)
	assert.Equal(t, entity.AnswerStatusCompleted, answers.created.Status)
	assert.Equal(t, "Pay your Corporation Tax online.", answers.created.Message)
	assert.Empty(t, answers.created.RephrasedQuestion)
	assert.Equal(t, 20, answers.created.PromptTokens)
	assert.Equal(t, 10, answers.created.CompletionTokens)

	// [1] 指向重排后的第一条，即加权分更高的 guide
	require.Len(t, answers.created.Sources, 1)
	assert.Equal(t, "https://example.org/pay-corporation-tax", answers.created.Sources[0].URL)

	require.NotEmpty(t, broadcaster.events)
	_, ok := broadcaster.events[len(broadcaster.events)-1].(*FinishedEvent)
	assert.True(t, ok)
}

func TestRunRephrasesWithHistory(t *testing.T) {
	question := newTestQuestion()
	questions := &fakeQuestionRepo{
		question: question,
		answered: []*entity.Question{
			answeredQuestion("what is corporation tax", "", "A tax on company profits."),
		},
	}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}
	index := &staticIndex{hits: []*retrieval.ChunkHit{
		guideHit("guide-1", "guide", "https://example.org/pay", 0.9),
	}}

	chatModel := &scriptedChatModel{responses: []string{
		"False",
		"How do I pay Corporation Tax?", // 改写
		"Pay online [1].",
	}}

	svc := newTestService(chatModel, index, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, answers.created)
	assert.Equal(t, "How do I pay Corporation Tax?", answers.created.RephrasedQuestion)
	assert.Equal(t, 3, chatModel.calls)
}

func TestRunInputGuardrailTriggered(t *testing.T) {
	question := newTestQuestion()
	questions := &fakeQuestionRepo{question: question}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}

	chatModel := &scriptedChatModel{responses: []string{"True"}}

	svc := newTestService(chatModel, &staticIndex{}, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.NoError(t, err)

	// 固定拒答文案照常流式下发
	require.NotNil(t, answers.created)
	assert.Equal(t, "Sorry, I cannot answer that question.", answers.created.Message)
	assert.Empty(t, answers.created.Sources)
	assert.Equal(t, 1, chatModel.calls)
}

func TestRunInputGuardrailUnexpectedResponse(t *testing.T) {
	question := newTestQuestion()
	questions := &fakeQuestionRepo{question: question}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}

	// 哨兵值不合法按命中处理
	chatModel := &scriptedChatModel{responses: []string{"I am not sure about this one"}}

	svc := newTestService(chatModel, &staticIndex{}, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, answers.created)
	assert.Equal(t, "Sorry, I cannot answer that question.", answers.created.Message)
}

func TestRunNoUsableChunks(t *testing.T) {
	question := newTestQuestion()
	questions := &fakeQuestionRepo{question: question}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}

	chatModel := &scriptedChatModel{responses: []string{"False"}}

	svc := newTestService(chatModel, &staticIndex{}, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, answers.created)
	assert.Equal(t, "Sorry, I could not find any relevant content to answer your question.", answers.created.Message)
	assert.Empty(t, answers.created.Sources)
}

func TestRunComposeFailureBroadcastsNullAnswer(t *testing.T) {
	question := newTestQuestion()
	questions := &fakeQuestionRepo{question: question}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}
	index := &staticIndex{hits: []*retrieval.ChunkHit{
		guideHit("guide-1", "guide", "https://example.org/pay", 0.9),
	}}

	// 护栏放行后合成调用失败
	chatModel := &scriptedChatModel{responses: []string{"False"}, failFrom: 2}

	svc := newTestService(chatModel, index, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.Error(t, err)

	// 错误交还消费端重试，但订阅方先收到空回答终止事件
	require.Len(t, broadcaster.events, 1)
	_, ok := broadcaster.events[0].(*NullAnswerEvent)
	assert.True(t, ok)
	assert.Nil(t, answers.created)
}

func TestRunQuestionNotFound(t *testing.T) {
	questions := &fakeQuestionRepo{}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}

	svc := newTestService(&scriptedChatModel{responses: []string{"False"}}, &staticIndex{}, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          "job-x",
		ConversationID: "conv-x",
		QuestionID:     "missing",
	})
	require.NoError(t, err)

	// 只广播一条空回答终止事件，不写库
	require.Len(t, broadcaster.events, 1)
	_, ok := broadcaster.events[0].(*NullAnswerEvent)
	assert.True(t, ok)
	assert.Nil(t, answers.created)
}

func TestRunSkipsAnsweredQuestion(t *testing.T) {
	question := newTestQuestion()
	question.Answer = &entity.Answer{ID: "answer-1", Status: entity.AnswerStatusCompleted}
	questions := &fakeQuestionRepo{question: question}
	broadcaster := &fakeBroadcaster{}
	answers := &fakeAnswerRepo{}

	svc := newTestService(&scriptedChatModel{responses: []string{"False"}}, &staticIndex{}, questions, broadcaster, answers)
	err := svc.Run(context.Background(), &RunInput{
		JobID:          question.JobID,
		ConversationID: question.ConversationID,
		QuestionID:     question.ID,
	})
	require.NoError(t, err)

	assert.Empty(t, broadcaster.events)
	assert.Nil(t, answers.created)
}
