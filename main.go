package main

import (
	"github.com/shouni/gemini-brand-kit/cmd"
)

// main はアプリケーションの唯一のエントリーポイントなのだ！
func main() {
	cmd.Execute()
}
