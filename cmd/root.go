package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shouni/gemini-brand-kit/internal/config"

	"github.com/spf13/cobra"
)

// flagOverrides はすべてのコマンドで共通のフラグなのだ。空なら環境変数の値を使うのだ。
var flagOverrides struct {
	ImageModel  string
	AspectRatio string
	Verbose     bool
}

var rootCmd = &cobra.Command{
	Use:   "brand-kit",
	Short: "Gemini でプロフィール用のブランディング画像を生成するのだ。",
	Long: `名前と役職（と任意の参照写真）からプロフィール用のブランディング画像を生成するのだ。
serve で Web UI を起動し、generate で1枚だけ生成して保存できるのだよ。`,
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOverrides.ImageModel, "image-model", "", "使用する Gemini 画像モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&flagOverrides.AspectRatio, "aspect-ratio", "", "生成する画像のアスペクト比なのだ。")
	rootCmd.PersistentFlags().BoolVarP(&flagOverrides.Verbose, "verbose", "v", false, "デバッグログを出力するのだ。")

	rootCmd.AddCommand(serveCmd, generateCmd)
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagOverrides.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// .env に書かれたキーも見るため、環境変数を直接読まずに設定をロードするのだ
	if config.LoadConfig().GeminiAPIKey == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// loadConfig は環境変数の設定にフラグの指定を上書きして返すのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if flagOverrides.ImageModel != "" {
		cfg.ImageModel = flagOverrides.ImageModel
	}
	if flagOverrides.AspectRatio != "" {
		cfg.AspectRatio = flagOverrides.AspectRatio
	}
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
