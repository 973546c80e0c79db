package jsonapi

import (
	"testing"
	"time"
)

func TestEncodeFilter(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		f    Filter
		want string
	}{
		{
			name: "equals string",
			f:    Filter{Op: OpEquals, Field: "status", Value: "sent"},
			want: `equals(status,"sent")`,
		},
		{
			name: "greater-or-equal datetime",
			f:    Filter{Op: OpGreaterOrEqual, Field: "updated", Value: ts},
			want: "greater-or-equal(updated,2026-01-15T10:30:00Z)",
		},
		{
			name: "contains with embedded quote",
			f:    Filter{Op: OpContains, Field: "name", Value: `say "hi"`},
			want: `contains(name,"say \"hi\"")`,
		},
		{
			name: "less-than number",
			f:    Filter{Op: OpLessThan, Field: "value", Value: 42},
			want: "less-than(value,42)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeFilter(tt.f); got != tt.want {
				t.Errorf("EncodeFilter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeParams(t *testing.T) {
	p := Params{
		Filters: []Filter{
			{Op: OpGreaterOrEqual, Field: "updated", Value: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		Sort:    []string{"-updated"},
		Include: []string{"profile"},
		Fields:  map[string][]string{"event": {"timestamp", "value"}},
		Page:    PageSelector{Size: 50},
	}

	v := EncodeParams(p)

	if got := v.Get("filter"); got != "greater-or-equal(updated,2026-01-01T00:00:00Z)" {
		t.Errorf("filter = %q", got)
	}
	if got := v.Get("sort"); got != "-updated" {
		t.Errorf("sort = %q", got)
	}
	if got := v.Get("include"); got != "profile" {
		t.Errorf("include = %q", got)
	}
	if got := v.Get("fields[event]"); got != "timestamp,value" {
		t.Errorf("fields[event] = %q", got)
	}
	if got := v.Get("page[size]"); got != "50" {
		t.Errorf("page[size] = %q", got)
	}
}

func TestBuildURL(t *testing.T) {
	u, err := BuildURL("https://a.klaviyo.com/api/", "/campaigns", Params{
		Filters: []Filter{{Op: OpEquals, Field: "status", Value: "sent"}},
	})
	if err != nil {
		t.Fatalf("BuildURL() error = %v", err)
	}
	want := `https://a.klaviyo.com/api/campaigns?filter=equals%28status%2C%22sent%22%29`
	if u != want {
		t.Errorf("BuildURL() = %q, want %q", u, want)
	}
}
