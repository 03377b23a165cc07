package security

import (
	"strings"
	"testing"
)

// NewHTMLSanitizerが正しく初期化されることを検証
func TestNewHTMLSanitizer_Initializes(t *testing.T) {
	s := NewHTMLSanitizer()
	if s == nil {
		t.Fatal("expected non-nil sanitizer")
	}
	// インターフェースを満たすことの確認
	var _ HTMLSanitizerService = s
}

// 文書構造のタグが保持されることを検証
func TestHTMLSanitizer_KeepsDocumentStructure(t *testing.T) {
	s := NewHTMLSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"見出し", `<h2 id="goals">Goals</h2>`, `<h2 id="goals">Goals</h2>`},
		{"段落", `<p>本文</p>`, `<p>本文</p>`},
		{"コードブロック", `<pre><code>curl -s</code></pre>`, `<pre><code>curl -s</code></pre>`},
		{"表", `<table><tr><td>a</td></tr></table>`, `<table><tr><td>a</td></tr></table>`},
		{"箇条書き", `<ul><li>一</li><li>二</li></ul>`, `<ul><li>一</li><li>二</li></ul>`},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 危険なタグと属性が除去されることを検証
func TestHTMLSanitizer_StripsDangerousContent(t *testing.T) {
	s := NewHTMLSanitizer()

	tests := []struct {
		name    string
		input   string
		banned  string
	}{
		{"scriptタグ", `<p>前</p><script>alert(1)</script><p>後</p>`, "script"},
		{"iframeタグ", `<iframe src="https://evil.example.com"></iframe>`, "iframe"},
		{"styleタグ", `<style>body{display:none}</style>`, "style"},
		{"onclickイベント属性", `<p onclick="alert(1)">本文</p>`, "onclick"},
		{"javascriptスキームのリンク", `<a href="javascript:alert(1)">x</a>`, "javascript"},
		{"httpスキームの画像", `<img src="http://example.com/a.png">`, "http://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if strings.Contains(got, tt.banned) {
				t.Errorf("Sanitize(%q) = %q, %qが残っています", tt.input, got, tt.banned)
			}
		})
	}
}

// httpsスキームの画像は保持されることを検証
func TestHTMLSanitizer_AllowsHTTPSImages(t *testing.T) {
	s := NewHTMLSanitizer()

	got := s.Sanitize(`<img src="https://example.com/diagram.png" alt="構成図">`)
	if !strings.Contains(got, `src="https://example.com/diagram.png"`) {
		t.Errorf("Sanitize() = %q, https画像が除去されています", got)
	}
	if !strings.Contains(got, `alt="構成図"`) {
		t.Errorf("Sanitize() = %q, alt属性が除去されています", got)
	}
}

// 文書内フラグメントリンクが保持されることを検証
func TestHTMLSanitizer_KeepsFragmentLinks(t *testing.T) {
	s := NewHTMLSanitizer()

	got := s.Sanitize(`<a href="#goals">Goals</a>`)
	if !strings.Contains(got, `href="#goals"`) {
		t.Errorf("Sanitize() = %q, フラグメントリンクが除去されています", got)
	}
}

// 同一入力に対する冪等性を検証
func TestHTMLSanitizer_Idempotent(t *testing.T) {
	s := NewHTMLSanitizer()

	input := `<h1 id="title">RFD 123</h1><p>本文<script>x()</script></p>`
	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("冪等性が破れています: first=%q second=%q", first, second)
	}
}
