package domain

import "regexp"

const downloadSuffix = "_profile_pix.png"

var whitespaceRun = regexp.MustCompile(`\s+`)

// DownloadFileName はブランディング名から保存用のファイル名を決めます。
// 連続する空白は "_" 1文字にまとめます。
func DownloadFileName(name string) string {
	return whitespaceRun.ReplaceAllString(name, "_") + downloadSuffix
}
