package api

import (
	"bufio"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/tokenizer"
)

// alphabet maps 'a'..'z' to ids 1..26 and ' ' to 27; id 0 is the stop token.
type alphabet struct{}

func (alphabet) Encode(text string) ([]tokenizer.TokenID, error) {
	ids := make([]tokenizer.TokenID, 0, len(text))
	for _, r := range text {
		switch {
		case r == ' ':
			ids = append(ids, 27)
		case r >= 'a' && r <= 'z':
			ids = append(ids, tokenizer.TokenID(r-'a'+1))
		default:
			return nil, errors.New("unsupported rune")
		}
	}
	return ids, nil
}

func (alphabet) Decode(ids []tokenizer.TokenID) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		switch {
		case id == 0:
		case id == 27:
			b.WriteByte(' ')
		case id <= 26:
			b.WriteByte(byte('a' + id - 1))
		default:
			return "", tokenizer.ErrDecode
		}
	}
	return b.String(), nil
}

func (alphabet) TokenID(literal string) (tokenizer.TokenID, bool) {
	if literal == inference.DefaultStopToken {
		return 0, true
	}
	if len(literal) == 1 && literal[0] >= 'a' && literal[0] <= 'z' {
		return tokenizer.TokenID(literal[0] - 'a' + 1), true
	}
	return 0, false
}

func (alphabet) VocabSize() int { return 28 }

// script emits its tokens in order, then the stop token.
type script struct {
	tokens []tokenizer.TokenID
	n      int
	fail   error
}

func (s *script) Forward(window []tokenizer.TokenID, pos int) ([]float32, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]float32, 28)
	next := tokenizer.TokenID(0)
	if s.n < len(s.tokens) {
		next = s.tokens[s.n]
	}
	s.n++
	out[next] = 10
	return out, nil
}

func (s *script) Reset() { s.n = 0 }

func ptr[T any](v T) *T { return &v }

func newTestEcho(m inference.SequenceModel) *echo.Echo {
	service := NewService(m, alphabet{}, ServiceOptions{
		ModelName: "test",
		Defaults: inference.RequestOptions{
			Temperature:   ptr(0.0),
			RepeatPenalty: ptr(1.0),
			EchoPrompt:    ptr(false),
		},
	})
	e := echo.New()
	NewServer(service).Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(&script{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestModelInfo(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(&script{}), http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Model != "test" || info.VocabSize != 28 || info.StopToken != inference.DefaultStopToken {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	m := &script{tokens: []tokenizer.TokenID{15, 11}} // "ok"
	e := newTestEcho(m)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"say ok","seed":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "gen_") {
		t.Fatalf("id: got %q", resp.ID)
	}
	if resp.Text != "ok" {
		t.Fatalf("text: got %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Fatalf("finish reason: got %q", resp.FinishReason)
	}
	if resp.Seed != 3 {
		t.Fatalf("seed: got %d", resp.Seed)
	}
	if resp.Usage.PromptTokens != 6 || resp.Usage.CompletionTokens != 3 {
		t.Fatalf("usage: got %+v", resp.Usage)
	}
}

func TestGenerateEchoAndLength(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&script{tokens: []tokenizer.TokenID{1, 2, 3, 4}})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"go ","echo":true,"max_tokens":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "go ab" {
		t.Fatalf("text: got %q", resp.Text)
	}
	if resp.FinishReason != "length" || resp.Usage.CompletionTokens != 2 {
		t.Fatalf("unexpected result: %+v", resp)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&script{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, ""},
		{"malformed", `{"prompt":`, ""},
		{"unknown field", `{"prompt":"a","bogus":1}`, ""},
		{"empty prompt", `{"prompt":"  "}`, "prompt is required"},
		{"negative budget", `{"prompt":"a","max_tokens":-1}`, "max new tokens"},
		{"top p", `{"prompt":"a","top_p":1.5}`, "top-p"},
		{"unknown stop", `{"prompt":"a","stop":"<|im_end|>"}`, "stop token not in vocabulary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/generate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
			}
			var body struct {
				Error ResponseError `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Type != "invalid_request_error" {
				t.Fatalf("type: got %q", body.Error.Type)
			}
			if !strings.Contains(body.Error.Message, tt.want) {
				t.Fatalf("message %q does not contain %q", body.Error.Message, tt.want)
			}
		})
	}
}

func TestGenerateModelFailure(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&script{fail: errors.New("weights missing")})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"a"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "weights missing") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func readEvents(t *testing.T, body string) ([]streamEvent, bool) {
	t.Helper()
	var (
		events []streamEvent
		done   bool
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		if line == "[DONE]" {
			done = true
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events, done
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&script{tokens: []tokenizer.TokenID{8, 9, 27, 20, 8, 5, 18, 5}})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"greet","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type: got %q", ct)
	}

	events, done := readEvents(t, rec.Body.String())
	if !done {
		t.Fatal("missing [DONE] marker")
	}
	if len(events) < 2 {
		t.Fatalf("expected deltas and a done event, got %d events", len(events))
	}

	var text strings.Builder
	id := events[0].ID
	for i, ev := range events {
		if ev.ID != id {
			t.Fatalf("event %d id: got %q want %q", i, ev.ID, id)
		}
		if ev.Seq != i+1 {
			t.Fatalf("event %d sequence: got %d", i, ev.Seq)
		}
		if ev.Type == "delta" {
			text.WriteString(ev.Delta)
		}
	}
	if text.String() != "hi there" {
		t.Fatalf("streamed text: got %q", text.String())
	}
	last := events[len(events)-1]
	if last.Type != "done" || last.Response == nil || last.Response.FinishReason != "stop" {
		t.Fatalf("last event: %+v", last)
	}
}

func TestGenerateStreamFailureIsInBand(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&script{fail: errors.New("boom")})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"a","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	events, done := readEvents(t, rec.Body.String())
	if done {
		t.Fatal("unexpected [DONE] after failure")
	}
	if len(events) != 1 || events[0].Type != "error" || events[0].Error == nil {
		t.Fatalf("events: %+v", events)
	}
	if events[0].Error.Type != "server_error" {
		t.Fatalf("error type: got %q", events[0].Error.Type)
	}
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{newInvalidRequest("x"), http.StatusBadRequest},
		{inference.ErrEmptyPrompt, http.StatusBadRequest},
		{&inference.StepError{Step: 2, Kind: inference.ErrModelForward, Err: errors.New("x")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := errorStatus(tt.err); got != tt.want {
			t.Fatalf("errorStatus(%v): got %d want %d", tt.err, got, tt.want)
		}
	}
}
