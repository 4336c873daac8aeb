package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/consensus/pkg/api"
)

// connectMCP opens an MCP client session against the /mcp endpoint.
func connectMCP(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: testEnv.BaseURL() + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("connecting MCP client: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s: %v", name, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("%s content is %T, want text", name, res.Content[0])
	}
	return tc.Text, res.IsError
}

func TestMCPListDomains(t *testing.T) {
	cs := connectMCP(t)

	text, isErr := callTool(t, cs, "list_domains", map[string]any{})
	if isErr {
		t.Fatalf("list_domains failed: %s", text)
	}
	var domains []api.DomainInfo
	if err := json.Unmarshal([]byte(text), &domains); err != nil {
		t.Fatalf("decoding domains: %v (%s)", err, text)
	}
	if len(domains) != 2 || domains[0].Domain != "finance" {
		t.Errorf("domains = %+v", domains)
	}
}

func TestMCPAnalyzeAndRetrieve(t *testing.T) {
	cs := connectMCP(t)

	text, isErr := callTool(t, cs, "analyze", map[string]any{
		"domain": "finance",
		"input":  map[string]any{"ticker": "MCPX"},
	})
	if isErr {
		t.Fatalf("analyze failed: %s", text)
	}
	var rep api.Report
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if rep.State != api.StateCompleted || rep.Result.FinalOutput["recommendation"] != "hold" {
		t.Fatalf("report = %+v", rep)
	}

	// The report is visible through both surfaces.
	resp := getURL(t, testEnv.BaseURL()+"/v1/analyses/"+rep.ID)
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("GET over HTTP: expected 200, got %d", resp.StatusCode)
	}

	text, isErr = callTool(t, cs, "get_analysis", map[string]any{"id": rep.ID})
	if isErr {
		t.Fatalf("get_analysis failed: %s", text)
	}
	var stored api.Report
	if err := json.Unmarshal([]byte(text), &stored); err != nil {
		t.Fatalf("decoding stored report: %v", err)
	}
	if stored.ID != rep.ID {
		t.Errorf("stored id = %q, want %q", stored.ID, rep.ID)
	}
}

func TestMCPAnalyzeError(t *testing.T) {
	cs := connectMCP(t)

	text, isErr := callTool(t, cs, "analyze", map[string]any{
		"domain": "fragile",
		"input":  map[string]any{"ticker": "X"},
	})
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal([]byte(text), &errResp); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeAnalysisFailed {
		t.Errorf("error = %+v", errResp.Error)
	}
}
