package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, map[string]string{"k": "v"})

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), `"k":"v"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	mkReq := func(body, contentType string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req
	}

	var p payload
	if err := ParseJSON(mkReq(`{"name":"x"}`, "application/json"), &p); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if p.Name != "x" {
		t.Errorf("decoded name = %s", p.Name)
	}

	// charset suffix is acceptable.
	if err := ParseJSON(mkReq(`{"name":"x"}`, "application/json; charset=utf-8"), &p); err != nil {
		t.Errorf("charset suffix rejected: %v", err)
	}

	if err := ParseJSON(mkReq(`{"name":"x"}`, ""), &p); err == nil {
		t.Error("missing Content-Type must be rejected")
	}
	if err := ParseJSON(mkReq(`{"name":"x"}`, "text/plain"), &p); err == nil {
		t.Error("wrong Content-Type must be rejected")
	}
	if err := ParseJSON(mkReq(`{not json`, "application/json"), &p); err == nil {
		t.Error("malformed JSON must be rejected")
	}
	if err := ParseJSON(mkReq(`{"name":"x","extra":1}`, "application/json"), &p); err == nil {
		t.Error("unknown fields must be rejected")
	}
}
