package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/pdfrag/internal/model"
)

// SystemPrompt is sent as the system message of every answer request.
const SystemPrompt = "You are a helpful assistant for RAG."

const promptTemplate = `You are an expert assistant that answers based only on the context.
If the answer cannot be found in the context, say you don't know.

Context:
%s

Question: %s
Answer:`

// BuildContext 将前 limit 个来源拼接为 prompt 上下文，每段形如 "[p{page}] {text}"。
// 缺少页码的来源使用 "?"。
func BuildContext(sources []model.Source, limit int) string {
	if limit > 0 && len(sources) > limit {
		sources = sources[:limit]
	}
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		page := "?"
		if p := model.PageOf(s.Metadata); p > 0 {
			page = fmt.Sprint(p)
		}
		parts = append(parts, fmt.Sprintf("[p%s] %s", page, s.Text))
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt renders the answer prompt for a question and its context.
func BuildPrompt(context, query string) string {
	return fmt.Sprintf(promptTemplate, context, query)
}

// MeanConfidence returns the mean confidence of sources, 0 when there are none.
func MeanConfidence(sources []model.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.ConfidenceScore
	}
	return sum / float64(len(sources))
}
