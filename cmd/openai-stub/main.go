package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// openai-stub answers /v1/models and /v1/chat/completions with deterministic
// case-law summaries so the summarizer can run offline.

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

var (
	citedLine = regexp.MustCompile(`^\[(\d+)\] (.+) \(([^,()]*), [^()]*\)$`)
	termLine  = regexp.MustCompile(`(?m)^Termo pesquisado: (.+)$`)
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		user := ""
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		content := summarize(user)
		if content == "" {
			http.Error(w, "no cited decisions in prompt", http.StatusBadRequest)
			return
		}
		log.Info().Str("model", req.Model).Int("chars", len(content)).Msg("completion")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": model,
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}

// summarize cites every "[n] Title (Source, Date)" line of the prompt.
func summarize(user string) string {
	term := "o termo pesquisado"
	if m := termLine.FindStringSubmatch(user); m != nil {
		term = strings.TrimSpace(m[1])
	}
	var b strings.Builder
	for _, line := range strings.Split(user, "\n") {
		m := citedLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if b.Len() == 0 {
			fmt.Fprintf(&b, "Julgados encontrados para %s:\n", term)
		}
		fmt.Fprintf(&b, "- %s (%s) [%s]\n", m[2], m[3], m[1])
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("Verifique a íntegra de cada decisão antes de citá-la.")
	return b.String()
}
