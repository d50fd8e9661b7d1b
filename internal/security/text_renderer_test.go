package security

import (
	"strings"
	"testing"
)

// TestRenderFragment_EscapesMarkup はタグがマークアップとして残らないことを検証する。
func TestRenderFragment_EscapesMarkup(t *testing.T) {
	r := NewTextRenderer()

	tests := []struct {
		name  string
		input string
	}{
		{"script tag", `<script>alert("xss")</script>`},
		{"img onerror", `<img src=x onerror=alert(1)>`},
		{"iframe", `<iframe src="https://evil.example"></iframe>`},
		{"anchor", `<a href="javascript:alert(1)">click</a>`},
		{"style", `<style>body{display:none}</style>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RenderFragment(tt.input)
			if strings.Contains(got, "<script") ||
				strings.Contains(got, "<img") ||
				strings.Contains(got, "<iframe") ||
				strings.Contains(got, "<a ") ||
				strings.Contains(got, "<style") {
				t.Errorf("RenderFragment(%q) = %q, markup survived", tt.input, got)
			}
		})
	}
}

// TestRenderFragment_PreservesPlainText はプレーンテキストの内容が保たれることを検証する。
func TestRenderFragment_PreservesPlainText(t *testing.T) {
	r := NewTextRenderer()

	got := r.RenderFragment("Chapter 3 theory: the lighthouse keeper is the narrator")
	if got != "Chapter 3 theory: the lighthouse keeper is the narrator" {
		t.Errorf("RenderFragment() = %q, plain text should pass through", got)
	}
}

// TestRenderFragment_ConvertsNewlines は改行が<br>に変換されることを検証する。
func TestRenderFragment_ConvertsNewlines(t *testing.T) {
	r := NewTextRenderer()

	got := r.RenderFragment("line one\nline two\r\nline three")
	want := "line one<br>line two<br>line three"
	if got != want {
		t.Errorf("RenderFragment() = %q, want %q", got, want)
	}
}

// TestRenderFragment_EmptyInput は空入力に空出力を返すことを検証する。
func TestRenderFragment_EmptyInput(t *testing.T) {
	r := NewTextRenderer()

	if got := r.RenderFragment(""); got != "" {
		t.Errorf("RenderFragment(\"\") = %q, want empty", got)
	}
}

// TestRenderFragment_Idempotent は表示用断片の生成が冪等であることを検証する。
func TestRenderFragment_Idempotent(t *testing.T) {
	r := NewTextRenderer()

	input := "plot twist\nactually <b>bold</b> claim"
	first := r.RenderFragment(input)
	second := r.RenderFragment(input)
	if first != second {
		t.Errorf("RenderFragment() not deterministic: %q != %q", first, second)
	}
}
