package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/gemini-brand-kit/internal/config"
	"github.com/shouni/gemini-brand-kit/pkg/adapters"
	"github.com/shouni/gemini-brand-kit/pkg/controller"
	"github.com/shouni/gemini-brand-kit/pkg/prompts"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultGeminiTemperature = float32(0.4)
	cacheCleanupInterval     = 15 * time.Minute
)

// AppContext は、アプリケーション実行に必要な共通の依存関係を保持する
type AppContext struct {
	Config    *config.Config
	Core      *adapters.GeminiImageCore   // 参照画像の取得と画像パーツ変換
	Generator controller.GenerationClient // Gemini による生成・編集の窓口
	Limiter   *rate.Limiter               // Gemini 呼び出し間隔の制限（全セッション共通）
}

// NewController はセッションごとの Controller を作ります。レート制限は全セッションで共有するのだ。
func (a *AppContext) NewController() (*controller.Controller, error) {
	ctrl, err := controller.New(a.Generator, a.Limiter)
	if err != nil {
		return nil, err
	}
	if a.Config.StyleHint != "" {
		ctrl.SetStyleHint(a.Config.StyleHint)
	}
	return ctrl, nil
}

// Setup は設定から Gemini クライアントと HTTP クライアントを作り、AppContext を組み立てます。
func Setup(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("環境変数 GEMINI_API_KEY が設定されていません")
	}

	aiClient, err := InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	httpClient := httpkit.New(cfg.HTTPTimeout)

	return NewAppContext(cfg, aiClient, httpClient)
}

// NewAppContext は注入されたクライアントで AppContext を組み立てます。テストではモックを渡せます。
func NewAppContext(cfg *config.Config, aiClient adapters.ImageModel, httpClient adapters.HTTPClient) (*AppContext, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient は必須です")
	}

	imgCache := cache.New(cfg.ReferenceCacheTTL, cacheCleanupInterval)
	core := adapters.NewGeminiImageCore(httpClient, imgCache, cfg.ReferenceCacheTTL, cfg.ReferenceMaxBytes)

	pb, err := prompts.NewBrandPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("プロンプトビルダーの初期化に失敗しました: %w", err)
	}

	generator, err := adapters.NewGeminiBrandAdapter(core, aiClient, pb, cfg.ImageModel, cfg.AspectRatio)
	if err != nil {
		return nil, fmt.Errorf("GeminiBrandAdapterの初期化に失敗しました: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Core:      core,
		Generator: generator,
		Limiter:   NewLimiter(cfg),
	}, nil
}

// NewLimiter は設定に応じたレートリミッターを返します。間隔が 0 以下なら制限しません。
func NewLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RateInterval <= 0 {
		return nil
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(cfg.RateInterval), burst)
}

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (adapters.ImageModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}
