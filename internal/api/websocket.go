// internal/api/websocket.go
package api

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sableworks/agentconsole/internal/models"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

const wsWriteTimeout = 10 * time.Second

// wsClient 包装单个聊天测试连接
// 写操作可能来自读循环和流式转发两个goroutine，用互斥锁串行化
type wsClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed int32 // 原子操作标志，0=开启，1=关闭
}

// Close 安全关闭连接，重复调用无副作用
func (client *wsClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *wsClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// SendJSON 安全发送一条JSON消息
func (client *wsClient) SendJSON(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return client.conn.WriteJSON(message)
}

// SendError 发送错误消息到客户端
func (client *wsClient) SendError(errorMsg string) {
	client.SendJSON(map[string]interface{}{
		"type":      "error",
		"error":     sanitizeErrorMessage(errorMsg),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ChatWebSocket 流式聊天测试入口
// 客户端每发送一条 ChatRequest，服务端以分片消息流式返回模型回复
func (h *Handler) ChatWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	defer client.Close()

	log.Printf("✅ 聊天测试 WebSocket 已连接 (%s)", c.ClientIP())

	for {
		var req models.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ WebSocket 读取失败: %v", err)
			}
			break
		}

		h.streamChatToClient(c, client, req)
		if client.IsClosed() {
			break
		}
	}

	log.Printf("🔌 聊天测试 WebSocket 已断开 (%s)", c.ClientIP())
}

// streamChatToClient 执行一轮流式聊天并把分片转发给客户端
func (h *Handler) streamChatToClient(c *gin.Context, client *wsClient, req models.ChatRequest) {
	stream, sessionID, err := h.ChatService.Stream(c.Request.Context(), req)
	if err != nil {
		client.SendError(err.Error())
		return
	}

	client.SendJSON(map[string]interface{}{
		"type":       "start",
		"session_id": sessionID,
	})

	var modelName string
	for chunk := range stream {
		if chunk.ModelName != "" {
			modelName = chunk.ModelName
		}
		// 结束分片携带的是完整回复，内容已经通过增量分片发过了
		if chunk.Done {
			continue
		}
		msg := map[string]interface{}{
			"type":       "chunk",
			"content":    chunk.Text,
			"session_id": sessionID,
		}
		if err := client.SendJSON(msg); err != nil {
			log.Printf("⚠️ WebSocket 发送分片失败: %v", err)
			client.Close()
			return
		}
	}

	done := map[string]interface{}{
		"type":       "done",
		"session_id": sessionID,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	if modelName != "" {
		done["model_name"] = modelName
	}
	client.SendJSON(done)
}
