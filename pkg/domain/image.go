package domain

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	dataURIPrefix = "data:"
	base64Marker  = ";base64,"
)

// EncodedImage は MIME タイプ付きの画像バイナリです。
// データURIとして1つの文字列でやり取りできます。
type EncodedImage struct {
	Data     []byte
	MimeType string
}

// DataURI は画像を "data:<mime>;base64,<payload>" 形式に変換します。
func (img EncodedImage) DataURI() string {
	return dataURIPrefix + img.MimeType + base64Marker + base64.StdEncoding.EncodeToString(img.Data)
}

// IsEmpty は画像データを持たない場合に true を返すのだ。
func (img *EncodedImage) IsEmpty() bool {
	return img == nil || len(img.Data) == 0
}

// Clone はデータを複製した新しい画像を返します。nil なら nil のままです。
func (img *EncodedImage) Clone() *EncodedImage {
	if img == nil {
		return nil
	}
	return &EncodedImage{Data: bytes.Clone(img.Data), MimeType: img.MimeType}
}

// ParseDataURI は base64 形式のデータURIを EncodedImage に復元します。
func ParseDataURI(uri string) (EncodedImage, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return EncodedImage{}, fmt.Errorf("データURIではありません")
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(uri, dataURIPrefix), base64Marker[1:])
	if !found || !strings.HasSuffix(header, ";") {
		return EncodedImage{}, fmt.Errorf("base64 形式のデータURIのみ対応しています")
	}
	mimeType := strings.TrimSuffix(header, ";")
	if mimeType == "" {
		return EncodedImage{}, fmt.Errorf("データURIに MIME タイプがありません")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("base64 デコードに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return EncodedImage{}, fmt.Errorf("画像データが空です")
	}

	return EncodedImage{Data: data, MimeType: mimeType}, nil
}

// GenerationRequest はブランディング画像の生成要求です。呼び出しごとに組み立てられ、保存はされません。
type GenerationRequest struct {
	Name      string
	Roles     []string      // 優先順
	Reference *EncodedImage // nil なら参照画像なし
	StyleHint string
}

// EditRequest は生成済み画像に対する修正要求です。
type EditRequest struct {
	Image      EncodedImage
	Refinement string
}
