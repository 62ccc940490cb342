package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already a slug", "landing-page", "landing-page"},
		{"template display name", "Landing Page", "landing-page"},
		{"underscored name", "blog_post_layout", "blog-post-layout"},
		{"punctuation stripped", "Portfolio (v2)!", "portfolio-v2"},
		{"version digits kept", "hero-v2.1", "hero-v21"},
		{"empty string", "", ""},
		{"nothing sluggable", "???", ""},
		{"accented letters stripped", "café menu", "caf-menu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecordIDString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "conversation", ID: "abc-123"}
	got, err := RecordIDString(id)
	if err != nil {
		t.Fatalf("RecordIDString failed: %v", err)
	}
	if got != "abc-123" {
		t.Errorf("id = %q, want %q", got, "abc-123")
	}

	bad := surrealmodels.RecordID{Table: "conversation", ID: 42}
	if _, err := RecordIDString(bad); err == nil {
		t.Error("expected error for non-string id")
	}
}
