package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"jee-solver/api/internal/gateway"
)

func TestFirstText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"joins text parts", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("**SECTION 1"), genai.Text(": ANALYSIS**")}}},
		}}, "**SECTION 1: ANALYSIS**"},
		{"skips empty candidate", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}, genai.Text("x = 2")}}},
		}}, "x = 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstText(tt.resp); got != tt.want {
				t.Errorf("firstText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildParts(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0}

	parts := buildParts(gateway.Request{Prompt: "solve", Image: png, ImageURL: "gs://ignored"})
	if len(parts) != 2 {
		t.Fatalf("parts = %d", len(parts))
	}
	if txt, ok := parts[0].(genai.Text); !ok || txt != "solve" {
		t.Errorf("first part = %#v", parts[0])
	}
	blob, ok := parts[1].(genai.Blob)
	if !ok || blob.MIMEType != "image/png" {
		t.Errorf("image part = %#v", parts[1])
	}

	parts = buildParts(gateway.Request{Prompt: "p", ImageURL: "gs://bucket/q.jpg", MIME: "image/jpeg"})
	if fd, ok := parts[1].(genai.FileData); !ok || fd.URI != "gs://bucket/q.jpg" || fd.MIMEType != "image/jpeg" {
		t.Errorf("file part = %#v", parts[1])
	}

	if parts := buildParts(gateway.Request{Prompt: "text only"}); len(parts) != 1 {
		t.Errorf("text-only parts = %d", len(parts))
	}
}

func TestGenerationConfig(t *testing.T) {
	gc := generationConfig(gateway.DefaultOptions())
	if *gc.Temperature != 0.2 || *gc.TopK != 40 || *gc.TopP != 0.95 || *gc.MaxOutputTokens != 8192 {
		t.Errorf("config = %v %v %v %v", *gc.Temperature, *gc.TopK, *gc.TopP, *gc.MaxOutputTokens)
	}
}

func TestGenerateWithoutKey(t *testing.T) {
	_, err := New("", "gemini-2.0-flash", nil).Generate(context.Background(), gateway.Request{Prompt: "p"})
	if kind, _ := gateway.KindOf(err); kind != gateway.KindConfig {
		t.Fatalf("err = %v, want config error", err)
	}
}

func TestWithModelCopies(t *testing.T) {
	e := New("k", "gemini-2.0-flash", nil)
	g := e.WithModel("gemini-1.5-pro")
	if g.GetModel() != "gemini-1.5-pro" || e.Model != "gemini-2.0-flash" {
		t.Errorf("models = %s, %s", g.GetModel(), e.Model)
	}
}
