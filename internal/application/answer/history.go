package answer

import (
	"strings"

	"z-chat-ai-api/internal/domain/entity"
)

// BuildHistory 将已回答的历史问题渲染为改写 Prompt 的对话块。
// 用户侧优先使用改写后的问题，保证历史与当时实际检索的语义一致；
// maxTurns 限制消息条数（一问一答算两条），超出时保留最近的。
func BuildHistory(questions []*entity.Question, maxTurns int) string {
	var lines []string
	for _, q := range questions {
		if q == nil || !q.Answered() {
			continue
		}

		userMessage := q.Message
		if strings.TrimSpace(q.Answer.RephrasedQuestion) != "" {
			userMessage = q.Answer.RephrasedQuestion
		}

		lines = append(lines, string(entity.RoleUser)+": "+userMessage)
		lines = append(lines, string(entity.RoleAssistant)+": "+q.Answer.Message)
	}

	if maxTurns > 0 && len(lines) > maxTurns {
		lines = lines[len(lines)-maxTurns:]
	}

	return strings.Join(lines, "\n")
}
