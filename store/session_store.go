package store

import (
	"sync"
	"time"

	"maildigest/logger"
	"maildigest/models"

	"go.uber.org/zap"
)

// SessionStore はセッションIDと認証情報の対応を管理するインターフェースです。
// ライフサイクルと有効期限をWebサーバーなしでテストできるよう分離しています。
type SessionStore interface {
	Find(id string) *models.Session
	Save(session *models.Session)
	Delete(id string)
}

// MemorySessionStore はプロセス内メモリのみでセッションを保持します。
// 認証情報を永続ストレージへ書き出さない方針のため、これが唯一の実装です。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	logger   *zap.Logger
}

// NewMemorySessionStore は新しいMemorySessionStoreインスタンスを作成します
func NewMemorySessionStore() *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*models.Session),
		logger:   logger.Logger,
	}

	store.logger.Info("セッションストアを初期化しました")
	return store
}

// Find は指定されたセッションを取得します。
// 有効期限切れのセッションは破棄し、存在しない扱いにします。
func (s *MemorySessionStore) Find(id string) *models.Session {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil
	}

	if session.Expired(time.Now()) {
		s.logger.Debug("期限切れセッションを破棄します",
			zap.String("session_id", id))
		s.Delete(id)
		return nil
	}

	return session
}

// Save はセッションを保存します
func (s *MemorySessionStore) Save(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Delete はセッションを削除します
func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
