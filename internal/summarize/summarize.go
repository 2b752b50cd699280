// Package summarize turns a jurisprudence report into a short Portuguese
// overview, through an OpenAI-compatible model when one is configured.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/melkor/internal/cache"
	"github.com/hyperifyio/melkor/internal/jurisprudence"
	"github.com/hyperifyio/melkor/internal/llm"
)

const defaultSystemPrompt = "Você é um assistente jurídico de defesa criminal no Brasil. " +
	"Resuma apenas os julgados fornecidos, sem inventar decisões, números de processo ou datas. " +
	"Escreva em português, de forma objetiva."

// maxExcerptRunes bounds each result summary sent to the model.
const maxExcerptRunes = 600

var (
	// ErrEmptySummary means the model answered with no content.
	ErrEmptySummary = errors.New("model returned an empty summary")
	// ErrCacheMiss is returned in cache-only mode when nothing is cached.
	ErrCacheMiss = errors.New("summary not cached")
)

// Summarizer produces the overview. A nil Client or empty Model selects the
// deterministic digest.
type Summarizer struct {
	Client llm.Client
	Cache  *cache.LLMCache
	Model  string
	// CacheOnly serves from cache and fails fast on a miss.
	CacheOnly bool
	// SystemPrompt overrides the default system message when non-empty.
	SystemPrompt string

	retryDelay time.Duration
}

// Summarize returns the overview for rep.
func (s *Summarizer) Summarize(ctx context.Context, rep jurisprudence.Report) (string, error) {
	if s.Client == nil || strings.TrimSpace(s.Model) == "" || len(rep.Results()) == 0 {
		return Digest(rep), nil
	}
	system := defaultSystemPrompt
	if strings.TrimSpace(s.SystemPrompt) != "" {
		system = s.SystemPrompt
	}
	user := buildUserMessage(rep)
	key := cache.KeyFrom(s.Model, system+"\n\n"+user)

	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var out struct {
				Summary string `json:"summary"`
			}
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Summary) != "" {
				return out.Summary, nil
			}
		}
	}
	if s.CacheOnly {
		return "", ErrCacheMiss
	}

	req := openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		N:           1,
	}
	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		// One short retry for transient backend errors.
		if werr := s.wait(ctx); werr != nil {
			return "", fmt.Errorf("summary call: %w", err)
		}
		resp, err = s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("summary call (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptySummary
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptySummary
	}
	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"summary": out})
		_ = s.Cache.Save(ctx, key, payload)
	}
	return out, nil
}

func (s *Summarizer) wait(ctx context.Context) error {
	d := s.retryDelay
	if d == 0 {
		d = 100 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func buildUserMessage(rep jurisprudence.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Termo pesquisado: %s\n\n", rep.Term)
	sb.WriteString("Resuma em até três parágrafos as teses e resultados relevantes para a defesa, ")
	sb.WriteString("citando os julgados pelo número entre colchetes.\n\nJulgados:\n")
	for i, r := range rep.Results() {
		fmt.Fprintf(&sb, "[%d] %s (%s, %s)\n%s\n", i+1, r.Title, r.Source, r.PublishedAt, r.Link)
		if r.Summary != jurisprudence.SummaryUnavailable {
			sb.WriteString(truncate(r.Summary, maxExcerptRunes))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Digest is the model-free overview: one line per site in report order.
func Digest(rep jurisprudence.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pesquisa por %q: %d resultado(s).\n", rep.Term, len(rep.Results()))
	for _, o := range rep.Outcomes {
		fmt.Fprintf(&sb, "- %s: ", o.Site)
		switch o.Status {
		case jurisprudence.StatusOK:
			fmt.Fprintf(&sb, "%d resultado(s)", len(o.Results))
			if len(o.Results) > 0 {
				fmt.Fprintf(&sb, "; primeiro: %s", o.Results[0].Title)
			}
		case jurisprudence.StatusEmpty:
			sb.WriteString("nenhum resultado")
		case jurisprudence.StatusNotImplemented:
			sb.WriteString("extração ainda não implementada")
		case jurisprudence.StatusUnsupported:
			sb.WriteString("site não suportado")
		default:
			sb.WriteString("falha")
			if o.Message != "" {
				fmt.Fprintf(&sb, " (%s)", o.Message)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
