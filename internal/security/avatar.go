package security

import (
	"encoding/base64"
	"strings"

	"github.com/hitoshi/loreboard/internal/model"
)

// AvatarMaxBytes はアバター画像の最大サイズ（デコード後のバイト数）。
const AvatarMaxBytes = 2 * 1024 * 1024

// allowedAvatarMIMEs はアバターとして受け付ける画像MIMEタイプ。
var allowedAvatarMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateAvatarDataURL はアバターのdata: URLを検証する。
// base64エンコードされた許可MIMEの画像で、デコード後のサイズが
// AvatarMaxBytes以下であることを確認する。
// 違反は*model.APIError（UIにそのまま表示できる文言付き）で返す。
func ValidateAvatarDataURL(dataURL string) error {
	payload, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return model.NewAvatarInvalidError()
	}

	meta, encoded, ok := strings.Cut(payload, ",")
	if !ok {
		return model.NewAvatarInvalidError()
	}

	mime, rest, _ := strings.Cut(meta, ";")
	if !allowedAvatarMIMEs[mime] {
		return model.NewAvatarInvalidError()
	}
	if rest != "base64" {
		return model.NewAvatarInvalidError()
	}

	// デコードせずにサイズを見積もれるが、不正なbase64も弾きたいので
	// 先にエンコード長で粗く切ってからデコードする。
	if base64.StdEncoding.DecodedLen(len(encoded)) > AvatarMaxBytes+3 {
		return model.NewAvatarTooLargeError()
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return model.NewAvatarInvalidError()
	}
	if len(decoded) > AvatarMaxBytes {
		return model.NewAvatarTooLargeError()
	}

	return nil
}
