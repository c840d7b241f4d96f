package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-brand-kit/pkg/controller"
	"github.com/shouni/gemini-brand-kit/pkg/domain"
	"github.com/shouni/gemini-brand-kit/pkg/imgutil"
)

// InputReader はローカルや GCS のファイルを開くリーダーです（remoteio.InputReader が満たす）。
type InputReader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// OutputWriter は生成結果を保存するライターです（remoteio.OutputWriter が満たす）。
type OutputWriter interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
}

// ReferenceFetcher は http(s) の URL から参照写真を取得します。
type ReferenceFetcher interface {
	FetchReference(ctx context.Context, url string) (*domain.EncodedImage, error)
}

// BrandOptions はコマンドラインから渡される1回分の生成指示です。
type BrandOptions struct {
	Name        string
	Roles       []string
	Reference   string // ローカルパス、gs://...、または http(s):// の URL
	StyleHint   string
	Refinements []string // 生成後に順番に適用する修正指示
	Output      string   // 空なら名前から決めたファイル名に保存する
}

// BrandRunner は1枚のブランディング画像を生成して保存するまでを実行するのだ。
type BrandRunner struct {
	ctrl       *controller.Controller
	references ReferenceFetcher
	reader     InputReader
	writer     OutputWriter
}

// NewBrandRunner は依存関係を注入して BrandRunner を作ります。
func NewBrandRunner(ctrl *controller.Controller, references ReferenceFetcher, reader InputReader, writer OutputWriter) (*BrandRunner, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer (OutputWriter) is required")
	}
	return &BrandRunner{ctrl: ctrl, references: references, reader: reader, writer: writer}, nil
}

// Run は生成、修正、保存を順に行い、保存先のパスを返します。
func (r *BrandRunner) Run(ctx context.Context, opts BrandOptions) (string, error) {
	r.ctrl.SetView(controller.ViewGenerator)
	r.ctrl.SetName(opts.Name)
	for _, role := range opts.Roles {
		if !r.ctrl.AddRole(role) {
			slog.WarnContext(ctx, "役職を追加できませんでした（重複または上限）", "role", role, "max", domain.MaxRoles)
		}
	}
	if opts.StyleHint != "" {
		r.ctrl.SetStyleHint(opts.StyleHint)
	}

	if opts.Reference != "" {
		ref, err := r.loadReference(ctx, opts.Reference)
		if err != nil {
			return "", fmt.Errorf("参照写真の読み込みに失敗しました: %w", err)
		}
		r.ctrl.SetReference(ref)
	}

	slog.InfoContext(ctx, "ブランディング画像を生成します", "name", opts.Name, "roles", opts.Roles, "with_reference", opts.Reference != "")
	if err := r.ctrl.RequestGenerate(ctx); err != nil {
		return "", err
	}

	for i, refinement := range opts.Refinements {
		if strings.TrimSpace(refinement) == "" {
			continue
		}
		slog.InfoContext(ctx, "修正指示を適用します", "step", i+1, "refinement", refinement)
		if err := r.ctrl.RequestEdit(ctx, refinement); err != nil {
			return "", err
		}
	}

	fileName, img, ok := r.ctrl.Download()
	if !ok {
		return "", domain.ErrNoImage
	}
	output := opts.Output
	if output == "" {
		output = fileName
	}
	if err := r.writer.Write(ctx, output, bytes.NewReader(img.Data), img.MimeType); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "画像を保存しました", "output", output, "bytes", len(img.Data))
	return output, nil
}

func (r *BrandRunner) loadReference(ctx context.Context, src string) (domain.EncodedImage, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if r.references == nil {
			return domain.EncodedImage{}, fmt.Errorf("URL の参照写真は取得できません")
		}
		img, err := r.references.FetchReference(ctx, src)
		if err != nil {
			return domain.EncodedImage{}, err
		}
		return *img, nil
	}

	if r.reader == nil {
		return domain.EncodedImage{}, fmt.Errorf("reader が設定されていません")
	}
	rc, err := r.reader.Open(ctx, src)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	return imgutil.DetectImage(data)
}
