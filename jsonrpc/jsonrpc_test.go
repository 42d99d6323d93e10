package jsonrpc

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		method  string
	}{
		{
			name:   "request",
			input:  `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			method: "tools/list",
		},
		{
			name:   "notification",
			input:  `{"jsonrpc":"2.0","method":"initialized"}`,
			method: "initialized",
		},
		{name: "bad json", input: `{"jsonrpc":`, wantErr: ErrInvalidJSON},
		{name: "wrong version", input: `{"jsonrpc":"1.0","id":1,"method":"x"}`, wantErr: ErrInvalidVersion},
		{name: "missing method", input: `{"jsonrpc":"2.0","id":1}`, wantErr: ErrMissingMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if req.Method != tt.method {
				t.Errorf("Method = %q, want %q", req.Method, tt.method)
			}
		})
	}
}

func TestRequest_IsNotification(t *testing.T) {
	req, _ := Decode([]byte(`{"jsonrpc":"2.0","method":"initialized"}`))
	if !req.IsNotification() {
		t.Error("request without id should be a notification")
	}

	req, _ = Decode([]byte(`{"jsonrpc":"2.0","id":"abc","method":"health"}`))
	if req.IsNotification() {
		t.Error("request with id should not be a notification")
	}
}

func TestRequest_BindParams(t *testing.T) {
	req, err := DecodeValue(map[string]any{
		"jsonrpc": "2.0",
		"id":      7,
		"method":  "tools/call",
		"params":  map[string]any{"name": "query_deepseek"},
	})
	if err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}

	var p struct {
		Name string `json:"name"`
	}
	if err := req.BindParams(&p); err != nil {
		t.Fatalf("BindParams() error = %v", err)
	}
	if p.Name != "query_deepseek" {
		t.Errorf("Name = %q, want query_deepseek", p.Name)
	}
	if string(req.ID) != "7" {
		t.Errorf("ID = %s, want 7", req.ID)
	}

	empty := &Request{JSONRPC: Version, Method: "initialize"}
	if err := empty.BindParams(&p); err == nil {
		t.Error("BindParams without params should fail")
	}
}

func TestResponses(t *testing.T) {
	ok := NewResult(json.RawMessage("1"), map[string]string{"status": "ok"})
	data, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"result":{"status":"ok"}`) || strings.Contains(string(data), `"error"`) {
		t.Errorf("result response = %s", data)
	}

	fail := NewError(nil, RateLimited, "Rate limit exceeded", map[string]any{"limit_type": "global"})
	data, err = json.Marshal(fail)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"id":null`) {
		t.Errorf("missing id should encode as null: %s", got)
	}
	if !strings.Contains(got, `"code":-32000`) {
		t.Errorf("error response = %s", got)
	}
	if fail.Error.Error() != "jsonrpc error -32000: Rate limit exceeded" {
		t.Errorf("Error() = %q", fail.Error.Error())
	}
}
