package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	gotemplate "text/template"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/engine"
)

// Agent is an engine.Agent built from a Definition.
type Agent struct {
	def    *Definition
	stages map[api.Stage]*stageHooks

	mu         sync.RWMutex
	frameworks map[string]string
}

var _ engine.Agent = (*Agent)(nil)

// New compiles the templates of def.
func New(def *Definition) (*Agent, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{def: def, stages: make(map[api.Stage]*stageHooks, len(api.Stages))}
	for _, s := range api.Stages {
		sd := def.Stages.get(s)
		user, err := gotemplate.New(string(s)).
			Funcs(funcs).
			Option("missingkey=zero").
			Parse(sd.User)
		if err != nil {
			return nil, fmt.Errorf("%s: stages.%s.user: %w", def.Domain, s, err)
		}
		a.stages[s] = &stageHooks{agent: a, stage: s, system: sd.System, user: user, expect: sd.Expect}
	}
	return a, nil
}

// Domain implements engine.Agent.
func (a *Agent) Domain() string { return a.def.Domain }

// Description returns the definition's description.
func (a *Agent) Description() string { return a.def.Description }

// LoadFrameworks reads the framework files named by the definition.
func (a *Agent) LoadFrameworks() error {
	loaded := make(map[string]string, len(a.def.Frameworks))
	for _, f := range a.def.Frameworks {
		path := a.def.frameworkPath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("loading framework %s: %w", f, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		loaded[name] = string(data)
	}

	a.mu.Lock()
	a.frameworks = loaded
	a.mu.Unlock()
	debug.Log("agents", "frameworks loaded", "domain", a.def.Domain, "count", len(loaded))
	return nil
}

// ProcessData checks that every required field is present and non-empty
// and returns a copy of input with string values trimmed.
func (a *Agent) ProcessData(input map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(input))
	for k, v := range input {
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[k] = v
	}

	var missing []string
	for _, f := range a.def.RequiredFields {
		if isEmpty(out[f]) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Knowledge implements engine.Agent.
func (a *Agent) Knowledge() engine.StageHooks { return a.stages[api.StageKnowledge] }

// Data implements engine.Agent.
func (a *Agent) Data() engine.StageHooks { return a.stages[api.StageData] }

// Reasoning implements engine.Agent.
func (a *Agent) Reasoning() engine.StageHooks { return a.stages[api.StageReasoning] }

func (a *Agent) frameworkSnapshot() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frameworks
}

// promptData is the value user templates are executed against.
type promptData struct {
	Domain     string
	Input      map[string]any
	Frameworks map[string]string
	Prior      engine.PriorContext
}

var funcs = gotemplate.FuncMap{
	"toJSON": toJSON,
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

type stageHooks struct {
	agent  *Agent
	stage  api.Stage
	system string
	user   *gotemplate.Template
	expect []string
}

func (h *stageHooks) SystemPrompt() string { return h.system }

func (h *stageHooks) BuildPrompt(input map[string]any, prior engine.PriorContext) string {
	var b strings.Builder
	err := h.user.Execute(&b, promptData{
		Domain:     h.agent.def.Domain,
		Input:      input,
		Frameworks: h.agent.frameworkSnapshot(),
		Prior:      prior,
	})
	if err != nil {
		// Whatever rendered before the failure is still sent.
		debug.Log("agents", "prompt template failed", "domain", h.agent.def.Domain,
			"stage", h.stage, "error", err.Error())
	}
	return b.String()
}

func (h *stageHooks) ParseOutput(text string) engine.ParseResult {
	res := engine.ParseJSON(text)
	ok, isOk := res.(engine.Ok)
	if !isOk || len(h.expect) == 0 {
		return res
	}
	var missing []string
	for _, k := range h.expect {
		if _, present := ok.Value[k]; !present {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return engine.NewFallback("missing keys: "+strings.Join(missing, ", "), text)
	}
	return ok
}
