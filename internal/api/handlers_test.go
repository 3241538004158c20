// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sableworks/agentconsole/internal/config"
	"github.com/sableworks/agentconsole/internal/db"
	"github.com/sableworks/agentconsole/internal/di"
	"github.com/sableworks/agentconsole/internal/llm"
	"github.com/sableworks/agentconsole/internal/services"
	"github.com/sableworks/agentconsole/internal/storage"
)

// 测试桩提供商，注册在 openai 名下
type fakeProvider struct{}

func (p *fakeProvider) Initialize(map[string]string) error         { return nil }
func (p *fakeProvider) GetName() string                            { return "openai" }
func (p *fakeProvider) GetSupportedModels() []string               { return []string{"gpt-4o"} }
func (p *fakeProvider) FetchAvailableModels(context.Context) error { return nil }
func (p *fakeProvider) SetCustomModels([]string)                   {}

func (p *fakeProvider) CompleteText(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: "测试回复", ModelName: "gpt-4o", TokensUsed: 5}, nil
}

func (p *fakeProvider) StreamCompletion(context.Context, llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	// 与真实提供商一致：先发增量分片，结束分片携带完整回复
	ch := make(chan llm.StreamResponse, 3)
	ch <- llm.StreamResponse{Text: "测试"}
	ch <- llm.StreamResponse{Text: "回复"}
	ch <- llm.StreamResponse{Text: "测试回复", Done: true, FinishReason: "stop", ModelName: "gpt-4o"}
	close(ch)
	return ch, nil
}

func init() {
	gin.SetMode(gin.TestMode)
	llm.Register("openai", func() llm.Provider { return &fakeProvider{} })
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	if err := config.InitConfig(dataDir); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}

	database := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err := database.Init(); err != nil {
		t.Fatalf("初始化测试数据库失败: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	documentRepo := storage.NewDocumentRepo(database)
	mcpRepo := storage.NewMCPConfigRepo(database)
	llmRepo := storage.NewLLMConfigRepo(database, nil)
	for _, init := range []func() error{documentRepo.Init, mcpRepo.Init, llmRepo.Init} {
		if err := init(); err != nil {
			t.Fatalf("初始化仓库失败: %v", err)
		}
	}

	dataService := services.NewDataService(documentRepo)
	mcpService := services.NewMCPService(mcpRepo)
	llmService := services.NewLLMService(llmRepo)
	draftService := services.NewDraftService(dataService, dataService, time.Hour)
	t.Cleanup(draftService.Close)
	chatService := services.NewChatService(llmService)

	container := di.GetContainer()
	container.Clear()
	container.Register("data", dataService)
	container.Register("mcp", mcpService)
	container.Register("llm", llmService)
	container.Register("draft", draftService)
	container.Register("chat", chatService)
	container.Register("config", services.NewConfigService())
	container.Register("stats", services.NewStatsService(mcpService, llmService, chatService, draftService))

	router, err := SetupRouter()
	if err != nil {
		t.Fatalf("SetupRouter失败: %v", err)
	}
	return router
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   *APIError       `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, *testResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp testResponse
	if w.Body.Len() > 0 {
		json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, &resp
}

func TestHealthAndStatusEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health应返回200，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status应返回200，实际 %d", w.Code)
	}
	var status struct {
		Uptime   string           `json:"uptime"`
		Requests map[string]int64 `json:"requests"`
	}
	json.Unmarshal(w.Body.Bytes(), &status)
	if status.Uptime == "" {
		t.Error("status应包含uptime")
	}
	if status.Requests["http_requests_total"] < 1 {
		t.Errorf("请求计数应随请求增长: %+v", status.Requests)
	}
}

func TestMCPConfigLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, "POST", "/api/mcp/configs", gin.H{
		"name":      "文件工具",
		"command":   "definitely-not-a-command-xyz",
		"transport": "stdio",
		"timeout":   5,
	})
	if w.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("创建应返回201: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	json.Unmarshal(resp.Data, &created)
	if created.Status != "configured" {
		t.Errorf("新配置状态应为 configured，实际 %s", created.Status)
	}

	// 连通性测试：不可执行的命令记入 error 状态，HTTP层仍是200
	w, resp = doJSON(t, router, "POST", "/api/mcp/configs/"+created.ID+"/test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("test应返回200，实际 %d", w.Code)
	}
	var tested struct {
		Status    string `json:"status"`
		LastError string `json:"last_error"`
	}
	json.Unmarshal(resp.Data, &tested)
	if tested.Status != "error" || tested.LastError == "" {
		t.Errorf("测试结果不符: %+v", tested)
	}

	// 校验错误
	w, resp = doJSON(t, router, "POST", "/api/mcp/configs", gin.H{
		"name": "坏的", "command": "x", "transport": "carrier-pigeon",
	})
	if w.Code != http.StatusBadRequest || resp.Error == nil {
		t.Errorf("非法传输方式应返回400: %d %s", w.Code, w.Body.String())
	}

	// 未知ID
	w, _ = doJSON(t, router, "GET", "/api/mcp/configs/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("未知ID应返回404，实际 %d", w.Code)
	}
}

func TestDraftCommitFlow(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, "POST", "/api/draft/start", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start应返回201，实际 %d", w.Code)
	}
	var started struct {
		SessionID string `json:"session_id"`
	}
	json.Unmarshal(resp.Data, &started)
	if started.SessionID == "" {
		t.Fatal("start应返回会话ID")
	}
	base := "/api/draft/" + started.SessionID

	// 未设置文档名时提交 → 400 指明原因
	doJSON(t, router, "PUT", base+"/item", gin.H{"text": "第一步内容"})
	w, resp = doJSON(t, router, "POST", base+"/commit", nil)
	if w.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != "METADATA_MISSING" {
		t.Fatalf("缺少文档名应返回400/METADATA_MISSING: %d %s", w.Code, w.Body.String())
	}

	// 空文本条目 → 400 且带序号
	doJSON(t, router, "PUT", base+"/metadata", gin.H{"name": "演示文档", "tags": []string{"demo"}})
	doJSON(t, router, "POST", base+"/items", nil)
	w, resp = doJSON(t, router, "POST", base+"/commit", nil)
	if w.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Sequence != 2 {
		t.Fatalf("空文本应返回400且指向第2条: %d %s", w.Code, w.Body.String())
	}

	// 补全后提交成功
	doJSON(t, router, "PUT", base+"/item", gin.H{"text": "第二步内容"})
	w, resp = doJSON(t, router, "POST", base+"/commit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("提交应返回201: %d %s", w.Code, w.Body.String())
	}
	var doc struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Version int    `json:"version"`
	}
	json.Unmarshal(resp.Data, &doc)
	if doc.Name != "演示文档" || doc.Version != 1 {
		t.Errorf("提交的文档不符: %+v", doc)
	}

	// 提交后会话失效
	w, _ = doJSON(t, router, "GET", base, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("提交后会话应失效，实际 %d", w.Code)
	}

	// 文档已可通过数据接口读取
	w, _ = doJSON(t, router, "GET", "/api/data/documents/"+doc.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("提交的文档应可读取，实际 %d", w.Code)
	}
}

func TestDocumentEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, "POST", "/api/data/documents", gin.H{
		"name": "坏序号",
		"data_list": []gin.H{
			{"sequence": 1, "text": "a"},
			{"sequence": 3, "text": "b"},
		},
	})
	if w.Code != http.StatusBadRequest || resp.Error == nil {
		t.Errorf("稀疏序号应返回400: %d %s", w.Code, w.Body.String())
	}
}

// 最小合法PNG文件头，足够内容嗅探识别
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func uploadImage(t *testing.T, router *gin.Engine, content []byte) (*httptest.ResponseRecorder, *testResponse) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "a.png")
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/data/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp testResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return w, &resp
}

func TestUploadImageEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w, resp := uploadImage(t, router, pngHeader)
	if w.Code != http.StatusOK {
		t.Fatalf("PNG上传应返回200: %d %s", w.Code, w.Body.String())
	}
	var result struct {
		Mimetype string `json:"mimetype"`
	}
	json.Unmarshal(resp.Data, &result)
	if result.Mimetype != "image/png" {
		t.Errorf("应嗅探为 image/png，实际 %s", result.Mimetype)
	}

	w, _ = uploadImage(t, router, []byte("not an image"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("非图片内容应返回400，实际 %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, "GET", "/api/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("读取设置应返回200: %d %s", w.Code, w.Body.String())
	}
	var settings struct {
		DebugMode      bool  `json:"debug_mode"`
		UploadMaxBytes int64 `json:"upload_max_bytes"`
	}
	json.Unmarshal(resp.Data, &settings)
	if settings.UploadMaxBytes != 10<<20 {
		t.Errorf("默认上传限制应为10MiB，实际 %d", settings.UploadMaxBytes)
	}

	w, resp = doJSON(t, router, "PUT", "/api/settings", gin.H{
		"debug_mode":       false,
		"upload_max_bytes": 1024,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("更新设置应返回200: %d %s", w.Code, w.Body.String())
	}
	json.Unmarshal(resp.Data, &settings)
	if settings.DebugMode || settings.UploadMaxBytes != 1024 {
		t.Errorf("更新后的设置不符: %+v", settings)
	}

	// 新的上传限制立即生效
	big := append(append([]byte{}, pngHeader...), make([]byte, 4096)...)
	w, _ = uploadImage(t, router, big)
	if w.Code != http.StatusBadRequest {
		t.Errorf("超过新限制的上传应返回400，实际 %d", w.Code)
	}

	// 非法值被拒绝
	w, _ = doJSON(t, router, "PUT", "/api/settings", gin.H{"upload_max_bytes": -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("非正数的上传限制应返回400，实际 %d", w.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w, _ := doJSON(t, router, "POST", "/api/data/documents", gin.H{
		"name":      "导出文档",
		"data_list": []gin.H{{"sequence": 1, "text": "内容"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("创建文档失败: %d %s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, router, "POST", "/api/data/export", gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("导出应返回200: %d %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".parquet") {
		t.Errorf("应以附件形式返回parquet文件: %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PAR1")) {
		t.Error("导出内容应为parquet文件")
	}
}

func TestChatEndpoint(t *testing.T) {
	router := newTestRouter(t)

	// 没有任何LLM配置时返回404
	w, _ := doJSON(t, router, "POST", "/api/chat", gin.H{"message": "你好"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("无默认配置应返回404，实际 %d", w.Code)
	}

	w, _ = doJSON(t, router, "POST", "/api/llm/configs", gin.H{
		"name":        "主力",
		"provider":    "openai",
		"model_name":  "gpt-4o",
		"settings":    gin.H{"provider": "openai", "api_key": "sk-test"},
		"temperature": 0.7,
		"top_p":       1,
		"is_default":  true,
		"enabled":     true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("创建LLM配置失败: %d %s", w.Code, w.Body.String())
	}

	w, resp := doJSON(t, router, "POST", "/api/chat", gin.H{"message": "你好"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat应返回200: %d %s", w.Code, w.Body.String())
	}
	var chat struct {
		Content   string `json:"content"`
		SessionID string `json:"session_id"`
	}
	json.Unmarshal(resp.Data, &chat)
	if chat.Content != "测试回复" || chat.SessionID == "" {
		t.Errorf("聊天响应不符: %+v", chat)
	}

	w, _ = doJSON(t, router, "GET", "/api/chat/sessions/"+chat.SessionID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("会话应可读取，实际 %d", w.Code)
	}

	w, _ = doJSON(t, router, "GET", "/api/chat/sessions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("未知会话应返回404，实际 %d", w.Code)
	}
}
