package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shouni/gemini-brand-kit/pkg/controller"
	"github.com/shouni/gemini-brand-kit/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const sessionCookieName = "brandkit_session"

// ControllerFactory は新しいセッション用の Controller を作ります。
type ControllerFactory func() (*controller.Controller, error)

// SessionStore はブラウザごとの Controller を保持します。
// 最後のアクセスから ttl を過ぎたセッションは破棄され、状態も失われます。
type SessionStore struct {
	items   *cache.Cache
	ttl     time.Duration
	factory ControllerFactory
}

// NewSessionStore は go-cache をバックエンドにした SessionStore を作ります。
func NewSessionStore(ttl time.Duration, factory ControllerFactory) *SessionStore {
	items := cache.New(ttl, ttl/2)
	items.OnEvicted(func(string, interface{}) {
		metrics.ActiveSessions.Dec()
	})
	return &SessionStore{items: items, ttl: ttl, factory: factory}
}

// Resolve はリクエストの Cookie からセッションを引き当てます。
// 見つからなければ新しいセッションを作り、Cookie を発行するのだ。
func (s *SessionStore) Resolve(c *gin.Context) (*controller.Controller, error) {
	if id, err := c.Cookie(sessionCookieName); err == nil && id != "" {
		if v, found := s.items.Get(id); found {
			if ctrl, ok := v.(*controller.Controller); ok {
				// アクセスのたびにサーバー側と Cookie の両方の有効期限を延長する
				s.items.Set(id, ctrl, cache.DefaultExpiration)
				s.setCookie(c, id)
				return ctrl, nil
			}
		}
	}

	ctrl, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("セッションの初期化に失敗しました: %w", err)
	}
	id := uuid.NewString()
	if err := s.items.Add(id, ctrl, cache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("セッションの登録に失敗しました: %w", err)
	}
	metrics.ActiveSessions.Inc()

	s.setCookie(c, id)
	return ctrl, nil
}

func (s *SessionStore) setCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, id, int(s.ttl.Seconds()), "/", "", false, true)
}

// Len は保持中のセッション数を返します。
func (s *SessionStore) Len() int {
	return s.items.ItemCount()
}
