package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shouni/gemini-brand-kit/internal/builder"
	"github.com/shouni/gemini-brand-kit/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveOpts struct {
	ListenAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Web UI と API を起動するのだ。",
	RunE:  serveCommand,
}

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.ListenAddr, "listen", "l", "", "待ち受けアドレス（例: :8080）なのだ。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	if serveOpts.ListenAddr != "" {
		cfg.ListenAddr = serveOpts.ListenAddr
	}

	app, err := builder.Setup(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, app.NewController, app.Core)
	if err != nil {
		return fmt.Errorf("HTTP サーバーの初期化に失敗したのだ: %w", err)
	}

	slog.Info("ブランディング画像サーバーを起動するのだ！",
		"addr", cfg.ListenAddr,
		"image_model", cfg.ImageModel,
		"aspect_ratio", cfg.AspectRatio,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("サーバーが異常終了したのだ: %w", err)
	}

	slog.Info("サーバーを停止したのだ")
	return nil
}
