package imgutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/shouni/gemini-brand-kit/pkg/domain"

	"github.com/gabriel-vasile/mimetype"
)

const jpegMimeType = "image/jpeg"

// CompressToJPEG は画像データ（PNG, GIF, JPEG等）をJPEG形式に圧縮します。
// image.Decodeがサポートするフォーマットに対応しています。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DetectImage はバイト列の中身から MIME タイプを判定し、画像であれば EncodedImage を返します。
// 拡張子や申告された Content-Type は信用しません。
func DetectImage(data []byte) (domain.EncodedImage, error) {
	if len(data) == 0 {
		return domain.EncodedImage{}, fmt.Errorf("画像データが空です")
	}
	detected := DetectMimeType(data)
	if !strings.HasPrefix(detected, "image/") {
		return domain.EncodedImage{}, fmt.Errorf("画像ではないデータです (detected: %s)", detected)
	}
	return domain.EncodedImage{Data: data, MimeType: detected}, nil
}

// DetectMimeType は中身から MIME タイプを判定します。パラメータ部分（"; charset=..." など）は落とします。
func DetectMimeType(data []byte) string {
	detected, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return detected
}

// NormalizeReference は参照画像が maxBytes を超える場合に JPEG へ再圧縮します。
// maxBytes が 0 以下なら何もしません。圧縮に失敗した場合や小さくならない場合は元の画像を返すのだ。
func NormalizeReference(img domain.EncodedImage, maxBytes, quality int) domain.EncodedImage {
	if maxBytes <= 0 || len(img.Data) <= maxBytes {
		return img
	}

	compressed, err := CompressToJPEG(img.Data, quality)
	if err != nil || len(compressed) >= len(img.Data) {
		return img
	}
	return domain.EncodedImage{Data: compressed, MimeType: jpegMimeType}
}
