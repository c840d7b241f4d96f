package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shouni/gemini-brand-kit/pkg/domain"
	"github.com/shouni/gemini-brand-kit/pkg/metrics"
	"github.com/shouni/gemini-brand-kit/pkg/roles"

	"golang.org/x/time/rate"
)

// ユーザーに表示する固定メッセージ。リモート側の原因は表示せずログにだけ残します。
const (
	MsgValidation     = "Please complete your name and select a professional role."
	MsgGenerateFailed = "Branding engine encountered a delay. Please try again."
	MsgEditFailed     = "Adjustment failed. Please simplify the request."
	StatusGenerating  = "Rendering Professional Identity..."
	StatusEditing     = "Applying Brand Refinements..."
)

// ErrBusy は別の生成・編集が実行中のため要求を拒否したことを示します。
var ErrBusy = errors.New("another generation is already in flight")

// GenerationClient はコントローラーが利用する生成・編集の窓口です。
type GenerationClient interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.EncodedImage, error)
	Edit(ctx context.Context, req domain.EditRequest) (*domain.EncodedImage, error)
}

// Controller は1セッション分の AppState を排他的に所有し、ユーザー操作を状態遷移に変換します。
//
// リモート呼び出しの間はロックを保持しないため、Busy 中でも Snapshot や役職の編集は即座に返ります。
// 生成要求は呼び出し時点の名前・役職・参照画像をコピーしてから送るので、
// その後の役職編集は実行中のリクエストに影響しません。
type Controller struct {
	client  GenerationClient
	limiter *rate.Limiter

	mu            sync.Mutex
	view          View
	name          string
	roles         *roles.Collection
	reference     *domain.EncodedImage
	current       *domain.EncodedImage
	refinement    string
	styleHint     string
	inFlight      bool
	statusMessage string
	lastError     string
}

// New は空の状態で Controller を初期化します。limiter が nil の場合は呼び出し間隔を制限しません。
func New(client GenerationClient, limiter *rate.Limiter) (*Controller, error) {
	if client == nil {
		return nil, fmt.Errorf("client (GenerationClient) is required")
	}
	return &Controller{
		client:  client,
		limiter: limiter,
		view:    ViewLanding,
		roles:   roles.NewCollection(),
	}, nil
}

// RequestGenerate は現在の入力でブランディング画像を生成します。
// 名前か役職が欠けていれば ErrValidationFailed を返し、リモート呼び出しは行いません。
// 失敗しても既存の画像は残ります。
func (c *Controller) RequestGenerate(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		metrics.RecordIntent(IntentGenerate, metrics.StatusRejected)
		return ErrBusy
	}
	if strings.TrimSpace(c.name) == "" || c.roles.Len() == 0 {
		c.lastError = MsgValidation
		c.mu.Unlock()
		metrics.RecordIntent(IntentGenerate, metrics.StatusRejected)
		return fmt.Errorf("%w: name and at least one role are required", domain.ErrValidationFailed)
	}

	req := domain.GenerationRequest{
		Name:      c.name,
		Roles:     c.roles.Labels(),
		Reference: c.reference,
		StyleHint: c.styleHint,
	}
	c.enterBusy(StatusGenerating)
	c.lastError = ""
	c.mu.Unlock()

	img, err := c.call(ctx, func(ctx context.Context) (*domain.EncodedImage, error) {
		return c.client.Generate(ctx, req)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveBusy()
	if err != nil {
		slog.ErrorContext(ctx, "ブランディング画像の生成に失敗しました", "name", req.Name, "error", err)
		c.lastError = MsgGenerateFailed
		metrics.RecordIntent(IntentGenerate, metrics.StatusFailure)
		return asGenerationError(IntentGenerate, err)
	}

	c.current = img
	c.lastError = ""
	metrics.RecordIntent(IntentGenerate, metrics.StatusSuccess)
	return nil
}

// RequestEdit は現在の画像に修正指示を適用します。
// 画像がない場合や指示が空の場合は何もせず nil を返します。
func (c *Controller) RequestEdit(ctx context.Context, refinement string) error {
	c.mu.Lock()
	if c.current.IsEmpty() || strings.TrimSpace(refinement) == "" {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight {
		c.mu.Unlock()
		metrics.RecordIntent(IntentEdit, metrics.StatusRejected)
		return ErrBusy
	}

	req := domain.EditRequest{Image: *c.current, Refinement: refinement}
	c.enterBusy(StatusEditing)
	c.mu.Unlock()

	img, err := c.call(ctx, func(ctx context.Context) (*domain.EncodedImage, error) {
		return c.client.Edit(ctx, req)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveBusy()
	if err != nil {
		slog.ErrorContext(ctx, "画像の修正に失敗しました", "error", err)
		c.lastError = MsgEditFailed
		metrics.RecordIntent(IntentEdit, metrics.StatusFailure)
		return asGenerationError(IntentEdit, err)
	}

	c.current = img
	c.refinement = ""
	c.lastError = ""
	metrics.RecordIntent(IntentEdit, metrics.StatusSuccess)
	return nil
}

// call はレート制限を待ってからリモート呼び出しを1回だけ行うのだ。
func (c *Controller) call(ctx context.Context, fn func(context.Context) (*domain.EncodedImage, error)) (*domain.EncodedImage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レート制限の待機中に中断されました: %w", err)
		}
	}
	img, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if img.IsEmpty() {
		return nil, domain.ErrNoImage
	}
	return img, nil
}

func (c *Controller) enterBusy(status string) {
	c.inFlight = true
	c.statusMessage = status
}

func (c *Controller) leaveBusy() {
	c.inFlight = false
	c.statusMessage = ""
}

func asGenerationError(op string, err error) error {
	if errors.Is(err, domain.ErrGenerationFailed) {
		return err
	}
	return domain.NewGenerationError(op, err)
}
