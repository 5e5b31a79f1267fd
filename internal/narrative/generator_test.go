package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"vench/internal/emotion"
	"vench/internal/services"
	"vench/internal/services/llm"
)

type fakeLLM struct {
	reply      string
	err        error
	configured bool
	requests   []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeLLM) Configured() bool { return f.configured }

func sampleEmotions(t *testing.T) emotion.Vector {
	t.Helper()
	vec, err := emotion.FromMap(map[string]float64{"기쁨": 0.84, "평온": 0.31})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return vec
}

func TestNarrativeCleansReply(t *testing.T) {
	fake := &fakeLLM{configured: true, reply: "오늘은 행복(幸福)한 날이었다.[|assistant|]\n  바람이 좋았다.  "}
	text, err := NewGenerator(fake).Narrative(context.Background(), "오늘 산책을 했어", sampleEmotions(t))
	if err != nil {
		t.Fatalf("Narrative: %v", err)
	}
	if text != "오늘은 행복한 날이었다.\n바람이 좋았다." {
		t.Fatalf("unexpected narrative %q", text)
	}
	req := fake.requests[0]
	if req.MaxTokens != narrativeMaxTokens || req.Temperature != narrativeTemperature {
		t.Fatalf("unexpected request tuning %+v", req)
	}
	if !strings.Contains(req.User, "기쁨 0.8") || !strings.Contains(req.User, "오늘 산책을 했어") {
		t.Fatalf("user prompt missing context: %q", req.User)
	}
}

func TestTitleTakesFirstLine(t *testing.T) {
	fake := &fakeLLM{configured: true, reply: "\n\"제목: 봄날의 산책.\"\n다른 후보"}
	title, err := NewGenerator(fake).Title(context.Background(), "봄날에 산책을 했다.")
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "봄날의 산책" {
		t.Fatalf("unexpected title %q", title)
	}
}

func TestCleanTitleTruncates(t *testing.T) {
	got := CleanTitle(strings.Repeat("가", 30))
	if utf8.RuneCountInString(got) != MaxTitleRunes {
		t.Fatalf("title length = %d", utf8.RuneCountInString(got))
	}
}

func TestAdviceMentionsDominantEmotion(t *testing.T) {
	fake := &fakeLLM{configured: true, reply: "오늘의 기쁨을 오래 기억해 보세요."}
	advice, err := NewGenerator(fake).Advice(context.Background(), "친구와 웃었다", sampleEmotions(t))
	if err != nil {
		t.Fatalf("Advice: %v", err)
	}
	if advice == "" {
		t.Fatal("expected advice text")
	}
	if !strings.Contains(fake.requests[0].User, "가장 두드러진 감정: 기쁨") {
		t.Fatalf("user prompt = %q", fake.requests[0].User)
	}
}

func TestGeneratorFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		llm  *fakeLLM
		call func(*Generator) error
		kind services.ErrorKind
	}{
		{
			name: "empty reply after cleaning",
			llm:  &fakeLLM{configured: true, reply: "[|assistant|] 幸福 ()"},
			call: func(g *Generator) error { _, err := g.Narrative(ctx, "text", nil); return err },
			kind: services.KindExternalTool,
		},
		{
			name: "llm error",
			llm:  &fakeLLM{configured: true, err: errors.New("503")},
			call: func(g *Generator) error { _, err := g.Title(ctx, "narrative"); return err },
			kind: services.KindExternalTool,
		},
		{
			name: "not configured",
			llm:  &fakeLLM{},
			call: func(g *Generator) error { _, err := g.Advice(ctx, "text", nil); return err },
			kind: services.KindConfiguration,
		},
		{
			name: "blank input",
			llm:  &fakeLLM{configured: true, reply: "ok"},
			call: func(g *Generator) error { _, err := g.Title(ctx, " "); return err },
			kind: services.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(NewGenerator(tt.llm))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.Kind(err); got != tt.kind {
				t.Fatalf("kind = %s, want %s", got, tt.kind)
			}
		})
	}
}
