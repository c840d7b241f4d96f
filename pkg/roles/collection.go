package roles

import (
	"slices"

	"github.com/shouni/gemini-brand-kit/pkg/domain"

	"github.com/google/uuid"
)

// IDGenerator は Role の ID を採番する関数です。生存中のコレクション内で一意であれば方式は問いません。
type IDGenerator func() string

// Collection は順序付き・重複なし・上限付きの役職リストです。
// 挿入順はプロンプト上の優先順位としてそのまま使われます。
// 全操作は同期的で失敗しません。上限超過や重複は黙って無視します。
type Collection struct {
	items []domain.Role
	newID IDGenerator
}

// NewCollection は UUID で採番する空のコレクションを作るのだ。
func NewCollection() *Collection {
	return NewCollectionWithIDs(uuid.NewString)
}

// NewCollectionWithIDs は ID 採番方式を差し替えたコレクションを作ります。テスト用です。
func NewCollectionWithIDs(gen IDGenerator) *Collection {
	if gen == nil {
		gen = uuid.NewString
	}
	return &Collection{newID: gen}
}

// Add は役職を末尾に追加します。上限に達しているか同じラベルが既にある場合は何もしません。
func (c *Collection) Add(label string) bool {
	if len(c.items) >= domain.MaxRoles || c.Contains(label) {
		return false
	}
	c.items = append(c.items, domain.Role{ID: c.newID(), Label: label})
	return true
}

// Remove は ID が一致する要素を取り除きます。
func (c *Collection) Remove(id string) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

// MoveUp は index の要素を1つ前と入れ替えます。
func (c *Collection) MoveUp(index int) bool {
	return c.swap(index, index-1)
}

// MoveDown は index の要素を1つ後ろと入れ替えます。
func (c *Collection) MoveDown(index int) bool {
	return c.swap(index, index+1)
}

// Clear は全要素を削除します。
func (c *Collection) Clear() {
	c.items = nil
}

// Len は現在の要素数を返します。
func (c *Collection) Len() int {
	return len(c.items)
}

// Contains はラベルの完全一致で存在を確認します。
func (c *Collection) Contains(label string) bool {
	return slices.ContainsFunc(c.items, func(r domain.Role) bool { return r.Label == label })
}

// Labels は優先順のラベル一覧を返します。
func (c *Collection) Labels() []string {
	labels := make([]string, len(c.items))
	for i, r := range c.items {
		labels[i] = r.Label
	}
	return labels
}

// Items は要素のコピーを返します。呼び出し側が変更しても内部状態には影響しません。
func (c *Collection) Items() []domain.Role {
	return slices.Clone(c.items)
}

func (c *Collection) swap(index, target int) bool {
	n := len(c.items)
	if index < 0 || index >= n || target < 0 || target >= n {
		return false
	}
	c.items[index], c.items[target] = c.items[target], c.items[index]
	return true
}

func (c *Collection) indexOf(id string) int {
	return slices.IndexFunc(c.items, func(r domain.Role) bool { return r.ID == id })
}
