package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "mediq/pkg/errors"
)

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()

	if err := WriteError(rec, apperrors.NotFoundWithID("Slot", "65b000000000000000000001")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, body.Code)
	}
	if !strings.Contains(body.Error, "not found") {
		t.Errorf("expected message to mention not found, got %q", body.Error)
	}
	if body.Details["id"] != "65b000000000000000000001" {
		t.Errorf("expected id detail in response, got %v", body.Details)
	}
}

func TestWriteError_PlainErrorDoesNotLeak(t *testing.T) {
	rec := httptest.NewRecorder()

	if err := WriteError(rec, errors.New("dial tcp 10.0.0.7:27017: connection refused")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Code != apperrors.CodeInternal {
		t.Errorf("expected code %s, got %s", apperrors.CodeInternal, body.Code)
	}
	if strings.Contains(body.Error, "10.0.0.7") {
		t.Error("internal error detail must not reach the client")
	}
}

func TestWriteSuccessShapes(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteCreated(rec, map[string]string{"id": "65c000000000000000000001"}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}

	rec = httptest.NewRecorder()
	if err := WritePaginated(rec, []string{"a", "b"}, 42, 20, 0); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	var page PaginatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if page.TotalCount != 42 || page.Limit != 20 || page.Offset != 0 {
		t.Errorf("pagination envelope wrong: %+v", page)
	}
}
