package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Chat completions wire format, limited to the fields qualcoder sends and
// reads.
type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}

	chatChoice struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}

	chatResponse struct {
		ID      string       `json:"id"`
		Object  string       `json:"object"`
		Created int64        `json:"created"`
		Model   string       `json:"model"`
		Choices []chatChoice `json:"choices"`
		Usage   tokenUsage   `json:"usage"`
	}

	tokenUsage struct {
		Prompt     int `json:"prompt_tokens"`
		Completion int `json:"completion_tokens"`
		Total      int `json:"total_tokens"`
	}
)

// capturedRequest is one received request as served by /requests.
type capturedRequest struct {
	// Call is the 1-based call number for the model.
	Call       int           `json:"call"`
	Messages   []chatMessage `json:"messages"`
	ReceivedAt time.Time     `json:"received_at"`
}

// callLog keeps every request per model for /stats and /requests.
type callLog struct {
	mu      sync.Mutex
	total   int
	byModel map[string][]capturedRequest
}

// record stores req and returns its global call number and its 0-based
// index among the calls to req.Model.
func (l *callLog) record(req chatRequest) (call, index int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	index = len(l.byModel[req.Model])
	l.byModel[req.Model] = append(l.byModel[req.Model], capturedRequest{
		Call:       index + 1,
		Messages:   req.Messages,
		ReceivedAt: time.Now(),
	})
	return l.total, index
}

func (l *callLog) counts() (int, map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byModel := make(map[string]int, len(l.byModel))
	for name, reqs := range l.byModel {
		byModel[name] = len(reqs)
	}
	return l.total, byModel
}

// filter returns the requests to model ("" for all), optionally only the
// call-th one.
func (l *callLog) filter(model string, call int) map[string][]capturedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string][]capturedRequest)
	for name, reqs := range l.byModel {
		if model != "" && name != model {
			continue
		}
		for _, r := range reqs {
			if call == 0 || r.Call == call {
				out[name] = append(out[name], r)
			}
		}
	}
	return out
}

type server struct {
	fixtures fixtureSet
	log      *callLog
	logger   *slog.Logger
}

func newServer(fixtures fixtureSet, logger *slog.Logger) *server {
	return &server{
		fixtures: fixtures,
		log:      &callLog{byModel: make(map[string][]capturedRequest)},
		logger:   logger,
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /v1/chat/completions", s.complete)
	mux.HandleFunc("GET /v1/models", s.listModels)
	mux.HandleFunc("GET /stats", s.stats)
	mux.HandleFunc("GET /requests", s.requests)
	return mux
}

func (s *server) complete(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	call, index := s.log.record(req)
	content, source, ok := s.respond(req, index)
	if !ok {
		s.logger.Warn("Unrecognized request", "call", call, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q and prompt not recognized", req.Model), http.StatusNotFound)
		return
	}
	s.logger.Debug("Responding", "call", call, "model", req.Model, "source", source, "bytes", len(content))

	usage := tokenUsage{Completion: estimateTokens(content)}
	for _, m := range req.Messages {
		usage.Prompt += estimateTokens(m.Content)
	}
	usage.Total = usage.Prompt + usage.Completion

	now := time.Now()
	writeJSON(w, chatResponse{
		ID:      fmt.Sprintf("mock-%d-%d", now.UnixNano(), call),
		Object:  "chat.completion",
		Created: now.Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: usage,
	})
}

// respond answers from fixtures first and otherwise from the prompt
// shape. source names what produced the answer.
func (s *server) respond(req chatRequest, index int) (content, source string, ok bool) {
	if content, ok := s.fixtures.pick(req.Model, index); ok {
		return content, "fixture", true
	}

	prompt := lastUserMessage(req.Messages)
	if question, answer, existing, ok := parseCodingPrompt(prompt); ok {
		return marshal(map[string][]string{"thematic_codes": codeAnswer(question, answer, existing)}), "coder", true
	}
	if questions, transcript, ok := parseExtractionPrompt(prompt); ok {
		return marshal(map[string]map[string]string{"answers": extractAnswers(questions, transcript)}), "extractor", true
	}
	return "", "", false
}

// listModels lists the fixture models in the OpenAI list format.
func (s *server) listModels(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	data := []entry{}
	for _, name := range s.fixtures.models() {
		data = append(data, entry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	writeJSON(w, map[string]any{"object": "list", "data": data})
}

func (s *server) stats(w http.ResponseWriter, _ *http.Request) {
	total, byModel := s.log.counts()
	writeJSON(w, map[string]any{"total_calls": total, "calls_by_model": byModel})
}

// requests serves captured requests, filtered by the optional "model" and
// "call" query parameters.
func (s *server) requests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	call := 0
	if v := q.Get("call"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "call must be a positive integer", http.StatusBadRequest)
			return
		}
		call = n
	}
	writeJSON(w, map[string]any{"requests_by_model": s.log.filter(q.Get("model"), call)})
}

// estimateTokens approximates four characters per token.
func estimateTokens(s string) int {
	return len(s) / 4
}

func marshal(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
