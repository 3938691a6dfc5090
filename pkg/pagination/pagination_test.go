package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextFor("/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextFor("/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	tests := []struct {
		target string
		limit  int
		offset int
	}{
		{"/?limit=5000", MaxLimit, 0},
		{"/?limit=-3&offset=-7", DefaultLimit, 0},
		{"/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := FromContext(contextFor(tt.target))
		if p.Limit != tt.limit || p.Offset != tt.offset {
			t.Errorf("%s: got limit=%d offset=%d, want %d/%d", tt.target, p.Limit, p.Offset, tt.limit, tt.offset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if resp.Total != 10 || resp.Limit != 2 || resp.Offset != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if !resp.HasMore {
		t.Error("expected HasMore")
	}

	last := NewResponse([]string{"j"}, 10, 2, 9)
	if last.HasMore {
		t.Error("expected no more results on the last page")
	}
}

func TestParams_PreviousOffset(t *testing.T) {
	if got := (Params{Limit: 10, Offset: 25}).PreviousOffset(); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
	if got := (Params{Limit: 10, Offset: 5}).PreviousOffset(); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestParams_Links(t *testing.T) {
	query := url.Values{"min_sample": {"30"}}

	first := Params{Limit: 10, Offset: 0}.Links("/api/v1/reports/x", query, 25)
	if len(first) != 2 || first[0].Relation != "self" || first[1].Relation != "next" {
		t.Fatalf("unexpected first-page links %+v", first)
	}
	if first[1].URL != "/api/v1/reports/x?limit=10&min_sample=30&offset=10" {
		t.Errorf("unexpected next link %s", first[1].URL)
	}

	middle := Params{Limit: 10, Offset: 10}.Links("/p", nil, 25)
	if len(middle) != 3 || middle[2].Relation != "previous" {
		t.Fatalf("unexpected middle-page links %+v", middle)
	}
	if middle[2].URL != "/p?limit=10&offset=0" {
		t.Errorf("unexpected previous link %s", middle[2].URL)
	}

	empty := Params{Limit: 10}.Links("/p", nil, 0)
	if len(empty) != 1 {
		t.Errorf("expected only self link, got %+v", empty)
	}
	if query.Get("offset") != "" {
		t.Error("caller query must not be modified")
	}
}
