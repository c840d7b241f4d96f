package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/gemini-brand-kit/pkg/domain"
	"github.com/shouni/gemini-brand-kit/pkg/metrics"
	"github.com/shouni/gemini-brand-kit/pkg/prompts"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// 操作名（エラーとメトリクスのラベルに使う）
const (
	OpGenerate = "generate"
	OpEdit     = "edit"
)

// ImageModel は Gemini との通信のうち、画像生成で使う部分だけを切り出したものです。
type ImageModel interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}

// GeminiBrandAdapter は Gemini でブランディング画像を生成・編集するアダプター層です。
// どちらの操作も1回だけ呼び出し、リトライもタイムアウトも行いません。
type GeminiBrandAdapter struct {
	imgCore     ImageGeneratorCore
	aiClient    ImageModel
	prompts     prompts.PromptBuilder
	model       string
	aspectRatio string
}

// NewGeminiBrandAdapter は依存関係を注入して初期化します。
func NewGeminiBrandAdapter(core ImageGeneratorCore, aiClient ImageModel, pb prompts.PromptBuilder, model, aspectRatio string) (*GeminiBrandAdapter, error) {
	if core == nil {
		return nil, fmt.Errorf("core (ImageGeneratorCore) is required")
	}
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient (ImageModel) is required")
	}
	if pb == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	return &GeminiBrandAdapter{
		imgCore:     core,
		aiClient:    aiClient,
		prompts:     pb,
		model:       model,
		aspectRatio: aspectRatio,
	}, nil
}

// Generate は名前と役職（と任意の参照画像）からブランディング画像を生成します。
// 参照画像はテキストより前のパーツとして送ります。
func (a *GeminiBrandAdapter) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.EncodedImage, error) {
	var parts []*genai.Part

	if !req.Reference.IsEmpty() {
		if imgPart := a.imgCore.ToPart(*req.Reference); imgPart != nil {
			parts = append(parts, imgPart)
		} else {
			// 変換できない参照画像は捨てて、通常生成の文面で続行するのだ。
			slog.WarnContext(ctx, "参照画像をパーツに変換できませんでした。テキストのみで続行します", "mime_type", req.Reference.MimeType)
			req.Reference = nil
		}
	}

	prompt, err := a.prompts.BuildGenerate(req)
	if err != nil {
		return nil, domain.NewGenerationError(OpGenerate, err)
	}
	parts = append(parts, &genai.Part{Text: prompt})

	slog.InfoContext(ctx, "ブランディング画像の生成をリクエストします",
		"model", a.model,
		"roles", len(req.Roles),
		"with_reference", req.Reference != nil,
	)

	return a.execute(ctx, OpGenerate, parts)
}

// Edit は現在の画像と修正指示を1つのリクエストにまとめて送ります。
func (a *GeminiBrandAdapter) Edit(ctx context.Context, req domain.EditRequest) (*domain.EncodedImage, error) {
	if strings.TrimSpace(req.Refinement) == "" {
		return nil, domain.NewGenerationError(OpEdit, fmt.Errorf("修正指示が空です"))
	}

	imgPart := a.imgCore.ToPart(req.Image)
	if imgPart == nil {
		return nil, domain.NewGenerationError(OpEdit, fmt.Errorf("編集対象の画像をパーツに変換できませんでした"))
	}

	prompt, err := a.prompts.BuildEdit(req.Refinement)
	if err != nil {
		return nil, domain.NewGenerationError(OpEdit, err)
	}

	slog.InfoContext(ctx, "画像の修正をリクエストします", "model", a.model)
	return a.execute(ctx, OpEdit, []*genai.Part{imgPart, {Text: prompt}})
}

func (a *GeminiBrandAdapter) execute(ctx context.Context, op string, parts []*genai.Part) (*domain.EncodedImage, error) {
	opts := gemini.GenerateOptions{
		AspectRatio: a.aspectRatio,
	}

	start := time.Now()
	resp, err := a.aiClient.GenerateWithParts(ctx, a.model, parts, opts)
	if err != nil {
		metrics.RecordRemoteCall(op, metrics.StatusFailure, time.Since(start).Seconds())
		return nil, domain.NewGenerationError(op, fmt.Errorf("Gemini呼び出しに失敗しました: %w", err))
	}

	img, err := a.imgCore.ParseToResponse(resp)
	if err != nil {
		metrics.RecordRemoteCall(op, metrics.StatusFailure, time.Since(start).Seconds())
		return nil, domain.NewGenerationError(op, fmt.Errorf("レスポンスパースに失敗しました: %w", err))
	}

	metrics.RecordRemoteCall(op, metrics.StatusSuccess, time.Since(start).Seconds())
	return img, nil
}
