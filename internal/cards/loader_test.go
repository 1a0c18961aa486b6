package cards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantCount int
		wantFirst Card
	}{
		{
			name: "json array",
			file: "cards.json",
			content: `[
  {"card_name": "铁律", "ai_prompt": "a bronze law tablet", "description": "draw two", "card_group": "变法卡", "color_theme": "深红", "price": "3"},
  {"card_name": "Iron Edict"}
]`,
			wantCount: 2,
			wantFirst: Card{Name: "铁律", Prompt: "a bronze law tablet", Description: "draw two", Group: "变法卡", ColorTheme: "深红", Price: "3"},
		},
		{
			name:      "jsonl skips blank lines",
			file:      "cards.jsonl",
			content:   "{\"card_name\": \"A\", \"card_group\": \"军事卡\"}\n\n{\"card_name\": \"B\"}\n",
			wantCount: 2,
			wantFirst: Card{Name: "A", Group: "军事卡"},
		},
		{
			name: "yaml sequence",
			file: "cards.yaml",
			content: `- card_name: Granary
  ai_prompt: a full granary
  card_group: 经济卡
`,
			wantCount: 1,
			wantFirst: Card{Name: "Granary", Prompt: "a full granary", Group: "经济卡"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := NewLoader(writeFile(t, tt.file, tt.content)).Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(list) != tt.wantCount {
				t.Fatalf("expected %d cards, got %d", tt.wantCount, len(list))
			}
			if list[0] != tt.wantFirst {
				t.Errorf("first card = %+v, want %+v", list[0], tt.wantFirst)
			}
		})
	}
}

func TestLoadMissingFieldsAreEmpty(t *testing.T) {
	list, err := NewLoader(writeFile(t, "cards.json", `[{"card_name": "Lonely"}]`)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	c := list[0]
	if c.Prompt != "" || c.Description != "" || c.Group != "" || c.ColorTheme != "" {
		t.Errorf("expected empty optional fields, got %+v", c)
	}
	if c.GroupOrDefault() != Ungrouped {
		t.Errorf("GroupOrDefault() = %q, want %q", c.GroupOrDefault(), Ungrouped)
	}
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.parquet")
	want := []Card{
		{Name: "Bronze Mirror", Group: "道具卡", ColorTheme: "金色"},
		{Name: "Rite of Spring", Group: "祭祀卡", Description: "gain one favour"},
	}
	if err := parquet.WriteFile(path, want); err != nil {
		t.Fatalf("failed to write parquet: %v", err)
	}

	got, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d cards, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("card %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"unsupported extension", func(t *testing.T) string { return writeFile(t, "cards.csv", "a,b") }},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }},
		{"malformed json", func(t *testing.T) string { return writeFile(t, "cards.json", `{"card_name":`) }},
		{"malformed jsonl line", func(t *testing.T) string { return writeFile(t, "cards.jsonl", "{\"card_name\": \"A\"}\nnot json\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLoader(tt.path(t)).Load(); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		card Card
		want string
	}{
		{"plain", Card{Name: "Iron Edict"}, "Iron Edict.png"},
		{"cjk", Card{Name: "商鞅变法"}, "商鞅变法.png"},
		{"path separators", Card{Name: "War/Peace: Part 1"}, "War_Peace_ Part 1.png"},
		{"blank", Card{Name: "  "}, "unnamed.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.card.FileName(); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}
