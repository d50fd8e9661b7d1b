// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextRenderService は投稿本文をマークアップとして無害なHTML断片に変換し、
// XSS攻撃からユーザーを保護する。本文そのもの（保存値）には手を加えない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextRenderService は投稿本文のレンダリング機能のインターフェースを定義する。
// API応答およびビューの組み立て時に使用される。
type TextRenderService interface {
	// RenderFragment はプレーンテキストの本文を安全なHTML断片に変換する。
	// 全てのタグを除去し、特殊文字をエスケープし、改行を<br>に変換する。
	// 保存されている本文は変更せず、表示用の断片だけを生成する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	RenderFragment(body string) string
}

// textRenderer はTextRenderServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type textRenderer struct {
	policy *bluemonday.Policy
}

// NewTextRenderer はTextRenderServiceの新しいインスタンスを生成する。
// StrictPolicyは全ての要素と属性を拒否する。投稿本文はマークアップを
// 持たないプレーンテキストとして扱うため、これがちょうど必要な挙動になる。
func NewTextRenderer() *textRenderer {
	return &textRenderer{
		policy: bluemonday.StrictPolicy(),
	}
}

// RenderFragment はプレーンテキストの本文を安全なHTML断片に変換する。
func (r *textRenderer) RenderFragment(body string) string {
	if body == "" {
		return ""
	}
	escaped := r.policy.Sanitize(body)
	// StrictPolicyは改行をそのまま通すので、表示用に<br>へ変換する
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// compile-time interface check
var _ TextRenderService = (*textRenderer)(nil)
