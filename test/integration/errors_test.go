package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/consensus/pkg/api"
)

func TestInvalidJSON(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/analyses", "application/json",
		bytes.NewReader([]byte(`{invalid json`)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v, want type %q", errResp.Error, api.ErrorTypeInvalidRequest)
	}
}

func TestWrongContentType(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/analyses", "text/plain",
		strings.NewReader(`{"domain":"finance"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
}

func TestAnalysisErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantType   api.ErrorType
		wantParam  string
	}{
		{
			name:       "missing domain",
			body:       map[string]any{"input": map[string]any{"ticker": "X"}},
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "domain",
		},
		{
			name:       "unknown domain",
			body:       map[string]any{"domain": "weather", "input": map[string]any{}},
			wantStatus: http.StatusNotFound,
			wantType:   api.ErrorTypeNotFound,
		},
		{
			name:       "missing required field",
			body:       map[string]any{"domain": "finance", "input": map[string]any{"name": "ACME"}},
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "input",
		},
		{
			name:       "no provider succeeded",
			body:       map[string]any{"domain": "fragile", "input": map[string]any{"ticker": "X"}},
			wantStatus: http.StatusBadGateway,
			wantType:   api.ErrorTypeAnalysisFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, testEnv.BaseURL()+"/v1/analyses", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.StatusCode, readBody(t, resp))
			}
			var errResp api.ErrorResponse
			decodeJSON(t, resp, &errResp)
			if errResp.Error == nil {
				t.Fatal("error object is nil")
			}
			if errResp.Error.Type != tt.wantType {
				t.Errorf("error.type = %q, want %q", errResp.Error.Type, tt.wantType)
			}
			if tt.wantParam != "" && errResp.Error.Param != tt.wantParam {
				t.Errorf("error.param = %q, want %q", errResp.Error.Param, tt.wantParam)
			}
		})
	}
}

func TestFailedAnalysisIsRecorded(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/analyses", map[string]any{
		"domain": "fragile",
		"input":  map[string]any{"ticker": "X"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	resp = getURL(t, testEnv.BaseURL()+"/v1/analyses?domain=fragile")
	var list struct {
		Data []api.Report `json:"data"`
	}
	decodeJSON(t, resp, &list)
	if len(list.Data) == 0 {
		t.Fatal("failed analysis was not recorded")
	}
	rep := list.Data[0]
	if rep.State != api.StateFailed || rep.Error == nil || rep.Error.Type != api.ErrorTypeAnalysisFailed {
		t.Errorf("recorded report = %+v", rep)
	}
}

func TestMalformedAnalysisID(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/analyses/not-an-id")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUnknownAnalysisID(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/analyses/"+api.NewAnalysisID())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeNotFound {
		t.Errorf("error = %+v", errResp.Error)
	}
}
