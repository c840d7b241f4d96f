package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/gemini-brand-kit/pkg/domain"
	"github.com/shouni/gemini-brand-kit/pkg/imgutil"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// 参照画像の再圧縮設定
const (
	DefaultReferenceMaxBytes = 4 << 20
	ImageCompressionQuality  = 85
)

// ImageGeneratorCore は画像パーツの準備とレスポンス解析を抽象化するインターフェースです。
type ImageGeneratorCore interface {
	FetchReference(ctx context.Context, url string) (*domain.EncodedImage, error)
	ToPart(img domain.EncodedImage) *genai.Part
	ParseToResponse(resp *gemini.Response) (*domain.EncodedImage, error)
}

// HTTPClient は、URLからデータを取得するためのインターフェースです。
// httpkit.ClientInterface のうち参照画像の取得に必要な部分だけを要求します。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// ImageCacher は画像データのキャッシュ操作を抽象化するインターフェースです。
type ImageCacher interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, d time.Duration)
}

// GeminiImageCore は画像生成の共通ロジックを保持するコンポーネントです。
type GeminiImageCore struct {
	httpClient        HTTPClient
	imageCache        ImageCacher
	cacheTTL          time.Duration
	referenceMaxBytes int
}

// NewGeminiImageCore は依存関係を注入して GeminiImageCore のインスタンスを生成します。
// imageCache が nil の場合はキャッシュなしで動作します。
func NewGeminiImageCore(httpClient HTTPClient, imageCache ImageCacher, cacheTTL time.Duration, referenceMaxBytes int) *GeminiImageCore {
	return &GeminiImageCore{
		httpClient:        httpClient,
		imageCache:        imageCache,
		cacheTTL:          cacheTTL,
		referenceMaxBytes: referenceMaxBytes,
	}
}

// FetchReference は URL から参照画像を取得します。
// SSRF 対策の検証を通過し、中身が画像である場合のみ成功します。
func (c *GeminiImageCore) FetchReference(ctx context.Context, url string) (*domain.EncodedImage, error) {
	if c.imageCache != nil {
		if cached, found := c.imageCache.Get(url); found {
			if img, ok := cached.(domain.EncodedImage); ok {
				return &img, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "url", url, "type", fmt.Sprintf("%T", cached))
		}
	}

	if safe, err := isSafeURL(url); !safe || err != nil {
		slog.WarnContext(ctx, "SSRFの可能性がある、または不正なURLをブロックしました", "url", url, "error", err)
		return nil, fmt.Errorf("参照画像のURLが許可されていません: %w", err)
	}
	if c.httpClient == nil {
		return nil, fmt.Errorf("httpClient が設定されていないため参照画像を取得できません")
	}

	imgBytes, err := c.httpClient.FetchBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("参照画像のダウンロードに失敗しました: %w", err)
	}

	img, err := imgutil.DetectImage(imgBytes)
	if err != nil {
		return nil, fmt.Errorf("参照画像が不正です: %w", err)
	}

	if c.imageCache != nil {
		c.imageCache.Set(url, img, c.cacheTTL)
	}
	return &img, nil
}

// ToPart は EncodedImage を genai.Part (InlineData) に変換します。
// 上限を超える画像は JPEG に再圧縮してから送ります。
func (c *GeminiImageCore) ToPart(img domain.EncodedImage) *genai.Part {
	if len(img.Data) == 0 {
		return nil
	}
	img = imgutil.NormalizeReference(img, c.referenceMaxBytes, ImageCompressionQuality)

	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = imgutil.DetectMimeType(img.Data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		slog.Warn("MIMEタイプが画像ではないためPartに変換できませんでした", "detected_mime_type", mimeType)
		return nil
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     img.Data,
		},
	}
}

// ParseToResponse は Gemini のレスポンスから最初の候補の最初の画像パーツを取り出します。
func (c *GeminiImageCore) ParseToResponse(resp *gemini.Response) (*domain.EncodedImage, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, fmt.Errorf("Geminiからの有効な応答がありませんでした")
	}

	// 最初の候補 (Candidate) のみを利用する。
	candidate := resp.RawResponse.Candidates[0]

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = imgutil.DetectMimeType(part.InlineData.Data)
				}
				return &domain.EncodedImage{
					Data:     part.InlineData.Data,
					MimeType: mimeType,
				}, nil
			}
		}
	}

	// 安全フィルター等によるブロックの確認
	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("画像生成が異常終了しました (FinishReason: %s): %w", candidate.FinishReason, domain.ErrNoImage)
	}

	return nil, domain.ErrNoImage
}

// isSafeURL は SSRF 対策として URL を検証します。
// 名前解決されたすべての IP アドレスに対してプライベート IP チェックを行います。
func isSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP

	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolvedIPs, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("名前解決失敗: %w", err)
		}
		ips = resolvedIPs
	}

	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}

	return true, nil
}
