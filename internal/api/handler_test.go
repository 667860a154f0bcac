//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantBody   string
	}{
		{fmt.Errorf("%w: otp must be 6 digits", errdefs.ErrInvalidArgument), http.StatusBadRequest, "otp must be 6 digits"},
		{fmt.Errorf("%w: action not offered", errdefs.ErrFailedPrecondition), http.StatusPreconditionFailed, "action not offered"},
		{fmt.Errorf("%w: agent is still responding", errdefs.ErrConflict), http.StatusConflict, "still responding"},
		{fmt.Errorf("%w: journey", errdefs.ErrNotFound), http.StatusNotFound, "journey"},
		{errors.New("sql: connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteError(w, tt.err)
		if w.Code != tt.wantStatus {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.wantStatus)
		}
		if !strings.Contains(w.Body.String(), tt.wantBody) {
			t.Errorf("%v: body = %s", tt.err, w.Body)
		}
	}
}

func TestDecodeJSONLimits(t *testing.T) {
	var v map[string]string
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"`+strings.Repeat("a", 100)+`"}`))
	if DecodeJSON(w, r, 16, &v) {
		t.Fatal("oversized body accepted")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}
