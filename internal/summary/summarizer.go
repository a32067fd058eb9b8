package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"videoinsight/internal/language"
	"videoinsight/internal/logging"
	"videoinsight/internal/services"
	"videoinsight/internal/services/llm"
)

const systemPrompt = "你是一个专业的视频内容整理助手，擅长把口语化的转录文本整理成结构清晰的 Markdown 笔记。"

// BuildPrompt assembles the user prompt for one transcript.
func BuildPrompt(templatePrompt, transcript string) string {
	return fmt.Sprintf("%s\n\n以下是视频的转录文本：\n---\n%s\n---\n\n请按照上述要求整理内容。\n",
		strings.TrimSpace(templatePrompt), strings.TrimSpace(transcript))
}

// Summarizer restructures transcripts with a chat model.
type Summarizer struct {
	completer llm.Completer
	logger    *slog.Logger
}

// NewSummarizer wraps completer.
func NewSummarizer(completer llm.Completer, logger *slog.Logger) *Summarizer {
	return &Summarizer{completer: completer, logger: logging.NewComponentLogger(logger, "summarizer")}
}

// Summarize returns the model's notes for transcript.
func (s *Summarizer) Summarize(ctx context.Context, templatePrompt, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", services.Wrap(services.ErrValidation, "summary", "summarize", "transcript is empty", nil)
	}
	if strings.TrimSpace(templatePrompt) == "" {
		return "", services.Wrap(services.ErrValidation, "summary", "summarize", "template prompt is empty", nil)
	}
	system := systemPrompt
	if code, ok := language.Detect(transcript); ok && code != "zh" {
		system += fmt.Sprintf(" 转录文本的语言是 %s，请使用同一种语言输出。", language.DisplayName(code))
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("summarization started",
		logging.String(logging.FieldBackend, s.completer.Name()),
		logging.Int("transcript_length", len([]rune(transcript))),
	)
	reply, err := s.completer.Complete(ctx, llm.Request{System: system, User: BuildPrompt(templatePrompt, transcript)})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "summary", "complete", s.completer.Name(), err)
	}
	reply = llm.CleanReply(reply)
	logger.Info("summarization completed", logging.Int("summary_length", len([]rune(reply))))
	return reply, nil
}
