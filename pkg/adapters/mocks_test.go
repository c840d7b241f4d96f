package adapters

import (
	"context"
	"time"

	"github.com/shouni/gemini-brand-kit/pkg/domain"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// mockImageCore は ImageGeneratorCore インターフェースのテスト用モックなのだ。
type mockImageCore struct {
	fetchFunc  func(ctx context.Context, url string) (*domain.EncodedImage, error)
	toPartFunc func(img domain.EncodedImage) *genai.Part
	parseFunc  func(resp *gemini.Response) (*domain.EncodedImage, error)
}

func (m *mockImageCore) FetchReference(ctx context.Context, url string) (*domain.EncodedImage, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, url)
	}
	return nil, nil
}

func (m *mockImageCore) ToPart(img domain.EncodedImage) *genai.Part {
	if m.toPartFunc != nil {
		return m.toPartFunc(img)
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: img.MimeType, Data: img.Data}}
}

func (m *mockImageCore) ParseToResponse(resp *gemini.Response) (*domain.EncodedImage, error) {
	if m.parseFunc != nil {
		return m.parseFunc(resp)
	}
	return nil, nil
}

// mockAIClient は ImageModel のテスト用モックなのだ。
type mockAIClient struct {
	generateFunc func(model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
	calls        int
}

func (m *mockAIClient) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(model, parts, opts)
	}
	return nil, nil
}

// mockHTTPClient は HTTPClient を実装します。
type mockHTTPClient struct {
	fetchFunc func(ctx context.Context, url string) ([]byte, error)
	calls     int
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.calls++
	return m.fetchFunc(ctx, url)
}

// mockCache は ImageCacher インターフェースを実装するのだ。
type mockCache struct {
	data map[string]interface{}
}

func (m *mockCache) Get(key string) (interface{}, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(key string, value interface{}, d time.Duration) {
	if m.data == nil {
		m.data = make(map[string]interface{})
	}
	m.data[key] = value
}

// imageResponse は1枚の画像パーツを含む Gemini 応答を作るヘルパーなのだ。
func imageResponse(data []byte, mimeType string) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{
					Content: &genai.Content{
						Parts: []*genai.Part{
							{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
						},
					},
				},
			},
		},
	}
}
