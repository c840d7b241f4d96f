package controller

import (
	"github.com/shouni/gemini-brand-kit/pkg/domain"
)

// Intent 名（メトリクス用）
const (
	IntentGenerate = "generate"
	IntentEdit     = "edit"
)

// View は表示中の画面です。
type View string

const (
	ViewLanding   View = "landing"
	ViewGenerator View = "generator"
)

// Phase は InFlight と画像・エラーの有無から導かれる状態です。
type Phase string

const (
	PhaseIdleEmpty Phase = "idle-empty"
	PhaseIdleReady Phase = "idle-ready"
	PhaseBusy      Phase = "busy"
	PhaseIdleError Phase = "idle-error"
)

// State はある時点の AppState のコピーです。変更してもコントローラーには影響しません。
type State struct {
	View          View                 `json:"view"`
	Name          string               `json:"name"`
	Roles         []domain.Role        `json:"roles"`
	Reference     *domain.EncodedImage `json:"-"`
	Current       *domain.EncodedImage `json:"-"`
	Refinement    string               `json:"refinement"`
	StyleHint     string               `json:"style_hint"`
	InFlight      bool                 `json:"in_flight"`
	StatusMessage string               `json:"status_message"`
	LastError     string               `json:"last_error,omitempty"`
}

// Phase は現在の状態を返します。
func (s State) Phase() Phase {
	switch {
	case s.InFlight:
		return PhaseBusy
	case s.LastError != "":
		return PhaseIdleError
	case !s.Current.IsEmpty():
		return PhaseIdleReady
	default:
		return PhaseIdleEmpty
	}
}

// Snapshot は現在の状態のコピーを返します。画像も複製するので、呼び出し側で書き換えても構いません。
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	roles := c.roles.Items()
	if roles == nil {
		roles = []domain.Role{}
	}
	return State{
		View:          c.view,
		Name:          c.name,
		Roles:         roles,
		Reference:     c.reference.Clone(),
		Current:       c.current.Clone(),
		Refinement:    c.refinement,
		StyleHint:     c.styleHint,
		InFlight:      c.inFlight,
		StatusMessage: c.statusMessage,
		LastError:     c.lastError,
	}
}

// Phase は現在の状態を返す Snapshot().Phase() の短縮形なのだ。
func (c *Controller) Phase() Phase {
	return c.Snapshot().Phase()
}

// SetView は表示画面を切り替えます。
func (c *Controller) SetView(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
}

// SetName はブランディング名を設定します。入力中にエラー表示を消すことはしません。
func (c *Controller) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SetReference は参照写真を設定します。内容の検証は受け取り側で済んでいる前提です。
func (c *Controller) SetReference(img domain.EncodedImage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reference = &img
}

// ClearReference は参照写真を外します。
func (c *Controller) ClearReference() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reference = nil
}

// SetRefinement は修正指示の入力欄の内容を保持します。
func (c *Controller) SetRefinement(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refinement = text
}

// SetStyleHint は生成時に追記する自由記述のスタイル指定を設定します。
func (c *Controller) SetStyleHint(hint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.styleHint = hint
}

// AddRole は役職を追加します。上限や重複で無視された場合は false です。
func (c *Controller) AddRole(label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles.Add(label)
}

// RemoveRole は ID で役職を削除します。
func (c *Controller) RemoveRole(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles.Remove(id)
}

// MoveRoleUp は index の役職を1つ上げます。
func (c *Controller) MoveRoleUp(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles.MoveUp(index)
}

// MoveRoleDown は index の役職を1つ下げます。
func (c *Controller) MoveRoleDown(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles.MoveDown(index)
}

// ClearRoles は役職をすべて外します。
func (c *Controller) ClearRoles() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles.Clear()
}

// Download は現在の画像と保存用ファイル名を返します。画像がなければ ok は false です。
func (c *Controller) Download() (fileName string, img domain.EncodedImage, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.IsEmpty() {
		return "", domain.EncodedImage{}, false
	}
	return domain.DownloadFileName(c.name), *c.current, true
}
