package template

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/engine"
	"github.com/rhuss/consensus/pkg/provider"
	"github.com/rhuss/consensus/pkg/provider/providertest"
)

const cultureYAML = `domain: culture
description: Organisational culture assessment
frameworks:
  - frameworks/hofstede.md
required_fields: [text]
stages:
  knowledge:
    system: You are an organisational psychologist.
    user: |
      Frameworks:
      {{ index .Frameworks "hofstede" }}
      Describe which dimensions apply to: {{ .Input.text }}
    expect: [dimensions]
  data:
    system: Extract signals.
    user: |
      Knowledge: {{ toJSON .Prior.Knowledge }}
      Text: {{ .Input.text }}
  reasoning:
    system: Recommend.
    user: |
      Knowledge: {{ toJSON .Prior.Knowledge }}
      Data: {{ toJSON .Prior.Data }}
`

const skillsTOML = `domain = "skills"
required_fields = ["role"]

[stages.knowledge]
user = "Skills for {{ .Input.role }}"

[stages.data]
user = "Evidence for {{ .Input.role }}"

[stages.reasoning]
user = "Gaps for {{ .Input.role }}"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func agentsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "culture.yaml", cultureYAML)
	writeFile(t, dir, "skills.toml", skillsTOML)
	writeFile(t, dir, "frameworks/hofstede.md", "Power distance, individualism.")
	writeFile(t, dir, "README.txt", "ignored")
	return dir
}

func TestLoadDir(t *testing.T) {
	r, err := LoadDir(agentsDir(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	got := r.Domains()
	if len(got) != 2 || got[0] != "culture" || got[1] != "skills" {
		t.Fatalf("Domains() = %v, want [culture skills]", got)
	}
	a, ok := r.Get("culture")
	if !ok {
		t.Fatal("culture agent not found")
	}
	if a.Description() != "Organisational culture assessment" {
		t.Errorf("Description() = %q", a.Description())
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should fail")
	}
}

func TestLoadDefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown yaml key", "a.yaml", "domain: x\nbogus: 1\n", "bogus"},
		{"unknown toml key", "a.toml", "domain = \"x\"\nbogus = 1\n" +
			"[stages.knowledge]\nuser = \"k\"\n[stages.data]\nuser = \"d\"\n[stages.reasoning]\nuser = \"r\"\n", "bogus"},
		{"missing domain", "a.yaml", "stages: {knowledge: {user: k}, data: {user: d}, reasoning: {user: r}}\n", "domain is required"},
		{"missing stage prompt", "a.yaml", "domain: x\nstages: {knowledge: {user: k}}\n", "stages.data.user"},
		{"bad extension", "a.json", "{}", "unsupported extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := LoadDefinition(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuplicateDomain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", skillsTOML)
	writeFile(t, dir, "b.toml", skillsTOML)
	if _, err := LoadDir(dir); err == nil || !strings.Contains(err.Error(), "duplicate domain") {
		t.Errorf("LoadDir error = %v, want duplicate domain", err)
	}
}

func TestNewRejectsBadTemplate(t *testing.T) {
	def := &Definition{Domain: "x", Stages: Stages{
		Knowledge: StageDefinition{User: "{{ .Input"},
		Data:      StageDefinition{User: "d"},
		Reasoning: StageDefinition{User: "r"},
	}}
	if _, err := New(def); err == nil {
		t.Error("expected template parse error")
	}
}

func loadCulture(t *testing.T) *Agent {
	t.Helper()
	r, err := LoadDir(agentsDir(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	a, _ := r.Get("culture")
	return a
}

func TestLoadFrameworks(t *testing.T) {
	a := loadCulture(t)
	if err := a.LoadFrameworks(); err != nil {
		t.Fatalf("LoadFrameworks: %v", err)
	}
	prompt := a.Knowledge().BuildPrompt(map[string]any{"text": "we escalate"}, engine.PriorContext{})
	if !strings.Contains(prompt, "Power distance, individualism.") {
		t.Errorf("framework content missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "we escalate") {
		t.Errorf("input missing from prompt:\n%s", prompt)
	}
}

func TestLoadFrameworksMissingFile(t *testing.T) {
	def := &Definition{Domain: "x", Frameworks: []string{"nope.md"}, dir: t.TempDir(), Stages: Stages{
		Knowledge: StageDefinition{User: "k"},
		Data:      StageDefinition{User: "d"},
		Reasoning: StageDefinition{User: "r"},
	}}
	a, err := New(def)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.LoadFrameworks(); err == nil {
		t.Error("expected error for missing framework file")
	}
}

func TestProcessData(t *testing.T) {
	a := loadCulture(t)

	tests := []struct {
		name    string
		input   map[string]any
		wantErr bool
	}{
		{"present", map[string]any{"text": "  hello  "}, false},
		{"missing", map[string]any{"other": "x"}, true},
		{"blank", map[string]any{"text": "   "}, true},
		{"nil", map[string]any{"text": nil}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := a.ProcessData(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessData() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && out["text"] != "hello" {
				t.Errorf("text = %q, want trimmed", out["text"])
			}
		})
	}
}

func TestBuildPromptUsesPrior(t *testing.T) {
	a := loadCulture(t)
	prior := engine.PriorContext{
		Knowledge: api.Output{"dimensions": []any{"power_distance"}},
		Data:      api.Output{"signals": []any{"hierarchy"}},
	}
	prompt := a.Reasoning().BuildPrompt(map[string]any{"text": "x"}, prior)
	if !strings.Contains(prompt, `"power_distance"`) || !strings.Contains(prompt, `"hierarchy"`) {
		t.Errorf("prior outputs missing from prompt:\n%s", prompt)
	}
	if a.Reasoning().SystemPrompt() != "Recommend." {
		t.Errorf("SystemPrompt() = %q", a.Reasoning().SystemPrompt())
	}
}

func TestParseOutput(t *testing.T) {
	a := loadCulture(t)

	tests := []struct {
		name     string
		text     string
		fallback bool
	}{
		{"plain json", `{"dimensions": ["power_distance"]}`, false},
		{"fenced", "Here you go:\n```json\n{\"dimensions\": []}\n```", false},
		{"missing expected key", `{"other": 1}`, true},
		{"not json", "I cannot help with that", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Knowledge().ParseOutput(tt.text)
			_, isFallback := res.(engine.Fallback)
			if isFallback != tt.fallback {
				t.Fatalf("fallback = %v, want %v (%v)", isFallback, tt.fallback, res.Output())
			}
			if tt.fallback && res.Output()["raw"] != tt.text {
				t.Errorf("raw = %v, want original text", res.Output()["raw"])
			}
		})
	}

	// Stages without expected keys accept any object.
	if _, ok := a.Data().ParseOutput(`{"x": 1}`).(engine.Ok); !ok {
		t.Error("data stage should accept any JSON object")
	}
}

func TestTemplateAgentInPipeline(t *testing.T) {
	a := loadCulture(t)
	stub := &providertest.Stub{Fn: func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		return &provider.Response{Text: `{"dimensions":["power_distance"],"signals":["approval chains"]}`}, nil
	}}
	reg := provider.NewRegistry()
	if err := reg.Register(api.ProviderConfig{Key: "local"}, stub); err != nil {
		t.Fatal(err)
	}
	stage := api.EngineConfig{Providers: []string{"local"}, Temperature: provider.Float64(0.2)}
	p, err := engine.New(a, reg, engine.Config{Pipeline: api.PipelineConfig{
		Knowledge: stage, Data: stage, Reasoning: stage, ConsensusThreshold: 0.5,
	}})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	res, err := p.Analyze(context.Background(), map[string]any{"text": "every decision goes to the VP"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Domain != "culture" || res.OverallConfidence < 0.999 {
		t.Errorf("Domain = %q, OverallConfidence = %v", res.Domain, res.OverallConfidence)
	}

	reqs := stub.Requests()
	if len(reqs) != 3 {
		t.Fatalf("provider saw %d requests, want 3", len(reqs))
	}
	if !strings.Contains(reqs[0].UserPrompt, "Power distance") {
		t.Errorf("knowledge prompt lacks framework text:\n%s", reqs[0].UserPrompt)
	}
	if !strings.Contains(reqs[2].UserPrompt, "approval chains") {
		t.Errorf("reasoning prompt lacks data output:\n%s", reqs[2].UserPrompt)
	}
}
