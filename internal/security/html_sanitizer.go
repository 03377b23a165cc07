// Package security はアプリケーションのセキュリティ機能を提供する。
//
// HTMLSanitizerService はレンダリング済みRFD文書のHTMLをサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 文書表示に必要なタグと属性のみを通過させる。
package security

import (
	"net/url"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizerService はレンダリング済みHTMLのサニタイズ機能のインターフェースを定義する。
// 同期時のレコード保存前に使用される。
type HTMLSanitizerService interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 見出し・段落・リスト・表・コードブロックなど文書構造のタグのみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// imgタグのsrc属性はhttpsスキームのみ許可される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// htmlSanitizer はHTMLSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type htmlSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer はHTMLSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 文書構造タグ: 見出し(h1〜h6)、段落、リスト、表、引用、コード
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - 見出しと章節にはid属性を許可（文書内リンクのアンカーとして必要）
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: href（https絶対URLと#フラグメント）を許可
func NewHTMLSanitizer() *htmlSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "sup", "sub",
		"table", "thead", "tbody", "tr", "th", "td", "caption",
		"div", "span", "section", "figure", "figcaption",
	)

	// 文書内の章節リンクのため、アンカーとなるid属性を許可する
	p.AllowAttrs("id").Matching(regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-:.]*$`)).Globally()

	// aタグ: hrefのみ許可。フラグメント（#章節）リンクは残す
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)

	// imgタグ: srcはhttpsスキームのみ許可、altはアクセシビリティのため残す
	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &htmlSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (s *htmlSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
