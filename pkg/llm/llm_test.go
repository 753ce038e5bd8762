package llm

import (
	"context"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `SELECT 1`, `SELECT 1`},
		{"fenced", "```\nSELECT 1\n```", "SELECT 1"},
		{"tagged", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"json tagged", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"whitespace", "  ```sql\nSELECT 1\n```  ", "SELECT 1"},
		{"fence-looking body", "```\n{\"x\": \"y\"}", `{"x": "y"}`},
	}
	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestGeneratorFunc(t *testing.T) {
	g := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	out, err := g.Generate(context.Background(), "hi")
	if err != nil || out != "echo: hi" {
		t.Fatalf("unexpected: %q %v", out, err)
	}
}
