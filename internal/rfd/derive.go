// Package rfd はRFDレコードの同期と導出フィールドの計算を提供する。
package rfd

import (
	"fmt"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// NumberString はRFD番号を4桁ゼロ埋めの表示形式に変換する。
// 例: 42 -> "0042"、12345 -> "12345"（4桁を超える番号はそのまま）。
func NumberString(number int) string {
	return fmt.Sprintf("%04d", number)
}

// Name はRFD番号とタイトルから安定した識別子を導出する。
// 形式は "rfd-<番号>-<ケバブケースのタイトル>"。
// タイトルは小文字化し、英数字以外の連続をハイフン1つに置換する。
// 例: (42, "Storage Layout v2") -> "rfd-42-storage-layout-v2"。
func Name(number int, title string) string {
	slug := strings.ToLower(title)
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fmt.Sprintf("rfd-%d", number)
	}
	return fmt.Sprintf("rfd-%d-%s", number, slug)
}

// ShortLink はRFD番号から短縮リンクを導出する。
// shortDomainが空の場合は空文字列を返す。
func ShortLink(number int, shortDomain string) string {
	if shortDomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%d.%s", number, shortDomain)
}

// RenderedLink はRFD番号表示形式から閲覧ページのリンクを導出する。
// siteBaseが空の場合は空文字列を返す。
func RenderedLink(numberString, siteBase string) string {
	if siteBase == "" {
		return ""
	}
	return fmt.Sprintf("%s/rfd/%s", strings.TrimRight(siteBase, "/"), numberString)
}
