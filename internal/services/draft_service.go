// internal/services/draft_service.go
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sableworks/agentconsole/internal/composer"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
)

// draftSession 一个浏览器标签页对应的编排会话
// 编排器本身不加锁，mu 把同一会话的并发请求串行化
type draftSession struct {
	mu       sync.Mutex
	composer *composer.Composer
	lastUsed time.Time
}

// DraftService 管理文档编排会话
// 每个会话持有一个独立的编排器；空闲超过TTL的会话连同草稿一起回收
type DraftService struct {
	mu       sync.Mutex
	sessions map[string]*draftSession
	uploader composer.ImageUploader
	creator  composer.DocumentCreator
	ttl      time.Duration
	stopCh   chan struct{}
}

// NewDraftService 创建编排会话服务
func NewDraftService(uploader composer.ImageUploader, creator composer.DocumentCreator, ttl time.Duration) *DraftService {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	s := &DraftService{
		sessions: make(map[string]*draftSession),
		uploader: uploader,
		creator:  creator,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close 停止后台回收
func (s *DraftService) Close() {
	close(s.stopCh)
}

// StartSession 新建会话并初始化草稿，返回会话ID
func (s *DraftService) StartSession() (string, *composer.Draft) {
	session := &draftSession{
		composer: composer.NewComposer(s.uploader, s.creator),
		lastUsed: time.Now(),
	}
	session.composer.Start()

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return id, session.composer.Draft()
}

// Restart 丢弃会话中已有的草稿并重新开始
func (s *DraftService) Restart(sessionID string) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		c.Start()
		return nil
	})
}

// GetDraft 返回会话当前草稿的快照
func (s *DraftService) GetDraft(sessionID string) (*composer.Draft, error) {
	return s.withSession(sessionID, func(*composer.Composer) error {
		return nil
	})
}

// HasContent 草稿是否包含用户输入，前端据此决定丢弃前是否确认
func (s *DraftService) HasContent(sessionID string) (bool, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return false, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.composer.HasContent(), nil
}

// AddItem 追加一条空白条目
func (s *DraftService) AddItem(sessionID string) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		return c.AddItem()
	})
}

// GoToStep 切换当前步骤
func (s *DraftService) GoToStep(sessionID string, index int) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		c.GoToStep(index)
		return nil
	})
}

// UpdateCurrentItem 更新当前步骤的条目
func (s *DraftService) UpdateCurrentItem(sessionID string, update composer.ItemUpdate) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		return c.UpdateCurrentItem(update)
	})
}

// AttachImage 上传图片并附到当前步骤的条目上
func (s *DraftService) AttachImage(ctx context.Context, sessionID string, data []byte, filename string) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		return c.AttachImage(ctx, data, filename)
	})
}

// RemoveImage 清除当前条目的图片
func (s *DraftService) RemoveImage(sessionID string) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		c.RemoveImage()
		return nil
	})
}

// DeleteItem 删除指定条目
func (s *DraftService) DeleteItem(sessionID string, index int) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		return c.DeleteItem(index)
	})
}

// SetMetadata 设置文档元数据
func (s *DraftService) SetMetadata(sessionID, name, description string, tags []string) (*composer.Draft, error) {
	return s.withSession(sessionID, func(c *composer.Composer) error {
		return c.SetMetadata(name, description, tags)
	})
}

// Commit 提交草稿；成功后会话被移除
func (s *DraftService) Commit(ctx context.Context, sessionID string) (*models.DataDocument, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.lastUsed = time.Now()

	doc, err := session.composer.Commit(ctx)
	if err != nil {
		// 失败时草稿原样保留，会话继续存活供重试
		return nil, err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return doc, nil
}

// Cancel 丢弃草稿并移除会话
func (s *DraftService) Cancel(sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	session.composer.Cancel()
	session.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// ActiveSessions 当前存活的会话数
func (s *DraftService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *DraftService) session(id string) (*draftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("编排会话不存在或已过期: "+id, nil)
	}
	return session, nil
}

func (s *DraftService) withSession(id string, fn func(*composer.Composer) error) (*composer.Draft, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.lastUsed = time.Now()

	if err := fn(session.composer); err != nil {
		return nil, err
	}
	return session.composer.Draft(), nil
}

// sweepLoop 定期回收空闲超过TTL的会话
func (s *DraftService) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *DraftService) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			log.Printf("🧹 回收过期的编排会话: %s", id)
		}
	}
}
