// internal/api/websocket_test.go
package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestChatWebSocketStreaming(t *testing.T) {
	router := newTestRouter(t)

	w, _ := doJSON(t, router, "POST", "/api/llm/configs", gin.H{
		"name":        "主力",
		"provider":    "openai",
		"model_name":  "gpt-4o",
		"settings":    gin.H{"provider": "openai", "api_key": "sk-test"},
		"temperature": 0.7,
		"top_p":       1,
		"is_default":  true,
		"enabled":     true,
	})
	if w.Code != 201 {
		t.Fatalf("创建LLM配置失败: %d %s", w.Code, w.Body.String())
	}

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket连接失败: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{"message": "你好"}); err != nil {
		t.Fatalf("发送聊天请求失败: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var sawStart, sawChunk, sawDone bool
	var sessionID string
	var content strings.Builder
	for !sawDone {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
			Error     string `json:"error"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("读取消息失败: %v", err)
		}

		switch msg.Type {
		case "start":
			sawStart = true
			if msg.SessionID == "" {
				t.Error("start消息应携带会话ID")
			}
			sessionID = msg.SessionID
		case "chunk":
			sawChunk = true
			content.WriteString(msg.Content)
		case "done":
			sawDone = true
		case "error":
			t.Fatalf("收到错误消息: %s", msg.Error)
		}
	}

	if !sawStart || !sawChunk {
		t.Errorf("应依次收到 start 和 chunk 消息: start=%v chunk=%v", sawStart, sawChunk)
	}
	if content.String() != "测试回复" {
		t.Errorf("分片内容不符: %q", content.String())
	}

	// 会话记录里完整回复只出现一遍
	w, sessResp := doJSON(t, router, "GET", "/api/chat/sessions/"+sessionID, nil)
	if w.Code != 200 {
		t.Fatalf("读取会话失败: %d %s", w.Code, w.Body.String())
	}
	var session struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	json.Unmarshal(sessResp.Data, &session)
	if len(session.Messages) != 2 || session.Messages[1].Content != "测试回复" {
		t.Errorf("会话记录不符: %+v", session.Messages)
	}
}
