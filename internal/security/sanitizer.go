// Package security はアプリケーションのセキュリティ機能を提供する。
//
// Sanitizer はユーザー入力と記事本文のHTMLをサニタイズする。
// URLGuard は外部URLの検証とSSRF防止付きHTTPクライアントを提供する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLサニタイズのインターフェース。
type Sanitizer interface {
	// PostContent は記事本文を許可リストポリシーでサニタイズする。
	PostContent(rawHTML string) string

	// PlainText はすべてのタグを除去したプレーンテキストを返す。
	// コメント本文とプロフィールの自己紹介に使用する。
	PlainText(raw string) string
}

// contentSanitizer はSanitizerの実装。
// bluemondayのポリシーは構築後は読み取り専用のため、並行利用できる。
type contentSanitizer struct {
	post   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
// 記事本文のポリシー:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, h2, h3, img
//   - URL属性: httpsスキームのみ
//   - aタグ: target="_blank" と rel="noopener noreferrer" を付与
func NewSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "h2", "h3",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool {
		return true
	})

	return &contentSanitizer{
		post:   p,
		strict: bluemonday.StrictPolicy(),
	}
}

// PostContent は記事本文をサニタイズする。
func (s *contentSanitizer) PostContent(rawHTML string) string {
	return s.post.Sanitize(rawHTML)
}

// PlainText はタグを除去し、エスケープされた文字を元に戻して前後の空白を取り除く。
// 出力はテキストとして扱う前提で、HTMLとして埋め込む側でエスケープする。
func (s *contentSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}
