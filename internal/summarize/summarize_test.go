package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/melkor/internal/cache"
	"github.com/hyperifyio/melkor/internal/jurisprudence"
)

type capturingClient struct {
	calls   int
	fail    int
	lastReq openai.ChatCompletionRequest
	content string
}

func (c *capturingClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.lastReq = req
	if c.calls <= c.fail {
		return openai.ChatCompletionResponse{}, errors.New("503 upstream")
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c.content},
		}},
	}, nil
}

func sampleReport() jurisprudence.Report {
	return jurisprudence.Report{
		Term: "roubo majorado",
		Outcomes: []jurisprudence.Outcome{
			{Site: "jusbrasil", Status: jurisprudence.StatusOK, Results: []jurisprudence.Result{{
				Title: "HC 123", Link: "https://jb.test/1", Summary: "Ordem concedida.", Source: "JusBrasil", PublishedAt: "12/03/2023",
			}}},
			{Site: "stf", Status: jurisprudence.StatusNotImplemented, Results: []jurisprudence.Result{}},
			{Site: "stj", Status: jurisprudence.StatusFailed, Results: []jurisprudence.Result{}, Message: "timeout"},
			{Site: "tjsp", Status: jurisprudence.StatusUnsupported, Results: []jurisprudence.Result{}},
		},
	}
}

func TestSummarize_WithoutClientUsesDigest(t *testing.T) {
	s := &Summarizer{}
	got, err := s.Summarize(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	for _, want := range []string{
		`Pesquisa por "roubo majorado": 1 resultado(s).`,
		"- jusbrasil: 1 resultado(s); primeiro: HC 123",
		"- stf: extração ainda não implementada",
		"- stj: falha (timeout)",
		"- tjsp: site não suportado",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("digest missing %q:\n%s", want, got)
		}
	}
}

func TestSummarize_PromptCarriesResults(t *testing.T) {
	cc := &capturingClient{content: "  Resumo.  "}
	s := &Summarizer{Client: cc, Model: "m"}
	got, err := s.Summarize(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Resumo." {
		t.Fatalf("summary = %q", got)
	}
	user := cc.lastReq.Messages[1].Content
	for _, want := range []string{"Termo pesquisado: roubo majorado", "[1] HC 123 (JusBrasil, 12/03/2023)", "Ordem concedida."} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
	if cc.lastReq.Messages[0].Content != defaultSystemPrompt {
		t.Fatalf("unexpected system prompt")
	}
}

func TestSummarize_NoResultsSkipsModel(t *testing.T) {
	cc := &capturingClient{content: "x"}
	s := &Summarizer{Client: cc, Model: "m"}
	rep := jurisprudence.Report{Term: "t", Outcomes: []jurisprudence.Outcome{{Site: "stf", Status: jurisprudence.StatusNotImplemented}}}
	if _, err := s.Summarize(context.Background(), rep); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if cc.calls != 0 {
		t.Fatalf("model called for an empty report")
	}
}

func TestSummarize_CacheHitSkipsClient(t *testing.T) {
	c := &cache.LLMCache{Dir: t.TempDir()}
	first := &capturingClient{content: "Resumo em cache."}
	s := &Summarizer{Client: first, Model: "m", Cache: c}
	if _, err := s.Summarize(context.Background(), sampleReport()); err != nil {
		t.Fatalf("first Summarize: %v", err)
	}

	second := &capturingClient{content: "outro"}
	s.Client = second
	got, err := s.Summarize(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("second Summarize: %v", err)
	}
	if got != "Resumo em cache." || second.calls != 0 {
		t.Fatalf("got %q with %d calls; want cached summary and no calls", got, second.calls)
	}
}

func TestSummarize_CacheOnlyMiss(t *testing.T) {
	cc := &capturingClient{content: "x"}
	s := &Summarizer{Client: cc, Model: "m", Cache: &cache.LLMCache{Dir: t.TempDir()}, CacheOnly: true}
	if _, err := s.Summarize(context.Background(), sampleReport()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
	if cc.calls != 0 {
		t.Fatalf("client called in cache-only mode")
	}
}

func TestSummarize_RetriesOnce(t *testing.T) {
	cc := &capturingClient{content: "ok", fail: 1}
	s := &Summarizer{Client: cc, Model: "m", retryDelay: time.Millisecond}
	if _, err := s.Summarize(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if cc.calls != 2 {
		t.Fatalf("calls = %d, want 2", cc.calls)
	}

	cc = &capturingClient{content: "ok", fail: 2}
	s.Client = cc
	if _, err := s.Summarize(context.Background(), sampleReport()); err == nil {
		t.Fatalf("expected error after two failures")
	}
}

func TestSummarize_EmptyAnswer(t *testing.T) {
	s := &Summarizer{Client: &capturingClient{content: "  "}, Model: "m"}
	if _, err := s.Summarize(context.Background(), sampleReport()); !errors.Is(err, ErrEmptySummary) {
		t.Fatalf("err = %v, want ErrEmptySummary", err)
	}
}
