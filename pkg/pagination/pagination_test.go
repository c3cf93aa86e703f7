package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextWithQuery("?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(contextWithQuery("?limit=500"))

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"?limit=abc&offset=xyz", DefaultLimit, 0},
		{"?limit=-5&offset=-10", DefaultLimit, 0},
		{"?limit=0", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := FromContext(contextWithQuery(tt.query))
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("%s: got %+v", tt.query, p)
		}
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 50, Params{Limit: 20, Offset: 0})

	if resp.Total != 50 {
		t.Errorf("expected total 50, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more to be true")
	}

	last := NewResponse(nil, 50, Params{Limit: 20, Offset: 40})
	if last.HasMore {
		t.Error("expected has_more to be false on the last page")
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		p     Params
		total int
		want  bool
	}{
		{Params{Limit: 10, Offset: 0}, 25, true},
		{Params{Limit: 10, Offset: 10}, 25, true},
		{Params{Limit: 10, Offset: 20}, 25, false},
		{Params{Limit: 10, Offset: 0}, 10, false},
		{Params{Limit: 10, Offset: 0}, 0, false},
	}
	for _, tt := range tests {
		if got := tt.p.HasNext(tt.total); got != tt.want {
			t.Errorf("%+v HasNext(%d) = %v, want %v", tt.p, tt.total, got, tt.want)
		}
	}
}

func TestParams_PreviousOffset(t *testing.T) {
	tests := []struct {
		p    Params
		want int
	}{
		{Params{Limit: 10, Offset: 30}, 20},
		{Params{Limit: 10, Offset: 5}, 0},
		{Params{Limit: 10, Offset: 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.p.PreviousOffset(); got != tt.want {
			t.Errorf("%+v PreviousOffset() = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestParams_Links_FirstPage(t *testing.T) {
	links := Params{Limit: 10, Offset: 0}.Links("/api/v1/patients", nil, 25)

	if len(links) != 2 {
		t.Fatalf("expected self and next, got %d links", len(links))
	}
	if links[0].Relation != "self" || links[0].URL != "/api/v1/patients?limit=10&offset=0" {
		t.Errorf("unexpected self link %+v", links[0])
	}
	if links[1].Relation != "next" || links[1].URL != "/api/v1/patients?limit=10&offset=10" {
		t.Errorf("unexpected next link %+v", links[1])
	}
}

func TestParams_Links_MiddlePageKeepsFilters(t *testing.T) {
	query := url.Values{"district": {"Kegalle"}, "offset": {"999"}}
	links := Params{Limit: 10, Offset: 10}.Links("/api/v1/patients", query, 25)

	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	want := "/api/v1/patients?district=Kegalle&limit=10&offset=0"
	if links[2].Relation != "previous" || links[2].URL != want {
		t.Errorf("expected previous %q, got %+v", want, links[2])
	}
	if query.Get("offset") != "999" {
		t.Error("caller's query values must not be modified")
	}
}

func TestParams_Links_NoResults(t *testing.T) {
	links := Params{Limit: 10, Offset: 0}.Links("/api/v1/patients", nil, 0)
	if len(links) != 1 || links[0].Relation != "self" {
		t.Errorf("expected only self link, got %+v", links)
	}
}

func TestResponse_JSONFormat(t *testing.T) {
	resp := NewResponse([]int{1}, 1, Params{Limit: 10}).WithLinks("/x", nil)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"data", "total", "limit", "offset", "has_more", "links"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}
