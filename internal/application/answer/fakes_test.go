package answer

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
)

// scriptedChatModel 按调用顺序返回预置响应，超出时重复最后一条；
// failFrom > 0 时从第 failFrom 次调用起返回错误
type scriptedChatModel struct {
	responses []string
	calls     int
	inputs    [][]*schema.Message
	err       error
	failFrom  int
}

func (m *scriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, input)
	if m.failFrom > 0 && m.calls+1 >= m.failFrom {
		m.calls++
		return nil, errors.New("llm unavailable")
	}
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return &schema.Message{
		Role:    schema.Assistant,
		Content: m.responses[idx],
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
		},
	}, nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fakeFactory struct {
	chatModel model.BaseChatModel
}

func (f *fakeFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return f.chatModel, nil
}

// fakeBroadcaster 按顺序记录广播的事件
type fakeBroadcaster struct {
	conversationID string
	events         []interface{}
}

func (b *fakeBroadcaster) Publish(ctx context.Context, conversationID string, event interface{}) error {
	b.conversationID = conversationID
	b.events = append(b.events, event)
	return nil
}

// fakeCancelStore 可配置在第 N 次轮询后报告已取消
type fakeCancelStore struct {
	cancelAfterPolls int
	polls            int
	flag             bool
}

func (s *fakeCancelStore) Set(ctx context.Context, jobID string) error {
	s.flag = true
	return nil
}

func (s *fakeCancelStore) IsSet(ctx context.Context, jobID string) (bool, error) {
	s.polls++
	if s.cancelAfterPolls > 0 && s.polls > s.cancelAfterPolls {
		return true, nil
	}
	return s.flag, nil
}

type fakeAnswerRepo struct {
	created *entity.Answer
}

func (r *fakeAnswerRepo) Create(ctx context.Context, answer *entity.Answer) error {
	r.created = answer
	return nil
}

func (r *fakeAnswerRepo) GetByQuestionID(ctx context.Context, questionID string) (*entity.Answer, error) {
	return r.created, nil
}

func (r *fakeAnswerRepo) UpsertFeedback(ctx context.Context, feedback *entity.AnswerFeedback) error {
	return nil
}

type fakeQuestionRepo struct {
	question *entity.Question
	answered []*entity.Question
}

func (r *fakeQuestionRepo) Create(ctx context.Context, question *entity.Question) error { return nil }

func (r *fakeQuestionRepo) GetByID(ctx context.Context, id string) (*entity.Question, error) {
	return r.question, nil
}

func (r *fakeQuestionRepo) GetWithAnswer(ctx context.Context, id string) (*entity.Question, error) {
	return r.question, nil
}

func (r *fakeQuestionRepo) ListAnswered(ctx context.Context, conversationID string) ([]*entity.Question, error) {
	return r.answered, nil
}

func (r *fakeQuestionRepo) ListByConversation(ctx context.Context, conversationID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Question], error) {
	return repository.NewPagedResult([]*entity.Question{}, 0, pagination), nil
}

func (r *fakeQuestionRepo) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	return 0, nil
}

// newPipelineConfig 流水线测试的基础配置；块间停顿为零让测试即时完成
func newPipelineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Answer.Guardrails.PassValue = "False"
	cfg.Answer.Guardrails.FailValue = "True"
	cfg.Answer.Guardrails.RefusalMessage = "Sorry, I cannot answer that question."
	cfg.Answer.Retrieval.TopK = 20
	cfg.Answer.Retrieval.MaxContentWords = 200
	cfg.Answer.Retrieval.NoContentMessage = "Sorry, I could not find any relevant content to answer your question."
	cfg.Answer.Rerank.Weights = map[string]float64{"guide": 2.0}
	cfg.Answer.Compose.TopN = 5
	cfg.Answer.Compose.MaxHistoryTurns = 10
	cfg.Answer.Streaming.ChunkDelay = 0
	return cfg
}
