package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-brand-kit/internal/builder"
	"github.com/shouni/gemini-brand-kit/internal/runner"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/spf13/cobra"
)

var generateOpts runner.BrandOptions

// generateCmd は、Web UI を使わずに1枚だけ生成して保存するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "ブランディング画像を1枚生成して保存するのだ。",
	Long: `名前と役職からブランディング画像を生成し、--edit の指示を順番に適用してから保存するのだ。
参照写真と保存先はローカルパスのほか gs://... も指定できるのだよ。`,
	RunE: generateCommand,
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVarP(&generateOpts.Name, "name", "n", "", "画像に入れる名前なのだ（必須）。")
	flags.StringArrayVarP(&generateOpts.Roles, "role", "r", nil, "役職なのだ。最大3つまで繰り返し指定できるのだ。")
	flags.StringVar(&generateOpts.Reference, "reference", "", "参照写真（ローカル、gs://...、http(s)://...）なのだ。")
	flags.StringVar(&generateOpts.StyleHint, "style", "", "追加のスタイル指定なのだ。")
	flags.StringArrayVarP(&generateOpts.Refinements, "edit", "e", nil, "生成後に適用する修正指示なのだ。繰り返し指定できるのだ。")
	flags.StringVarP(&generateOpts.Output, "output", "o", "", "保存パス（ローカル or gs://...）なのだ。省略時は名前から決めるのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	app, err := builder.Setup(ctx, cfg)
	if err != nil {
		return err
	}
	ctrl, err := app.NewController()
	if err != nil {
		return err
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return err
	}

	brandRunner, err := runner.NewBrandRunner(ctrl, app.Core, reader, writer)
	if err != nil {
		return err
	}

	output, err := brandRunner.Run(ctx, generateOpts)
	if err != nil {
		return fmt.Errorf("ブランディング画像の生成に失敗したのだ: %w", err)
	}

	slog.Info("すべての工程が完了したのだ！", "output", output)
	return nil
}
