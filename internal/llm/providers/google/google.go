// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sableworks/agentconsole/internal/llm"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.0-flash",
				"gemini-1.5-pro",
				"gemini-1.5-flash",
			},
		}
	})
}

// Provider Google Gemini，通过官方genai SDK访问，
// 不像其他提供商那样手写HTTP。
type Provider struct {
	apiKey            string
	defaultModel      string
	recommendedModels []string
	availableModels   []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("google api密钥未提供")
	}

	p.apiKey = apiKey

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "gemini-2.0-flash"
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Google"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

func (p *Provider) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建gemini客户端失败: %w", err)
	}
	return client, nil
}

// FetchAvailableModels 拉取账户可用的模型列表
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API密钥未设置，无法获取模型列表")
	}

	client, err := p.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	var models []string
	it := client.ListModels(ctx)
	for {
		info, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("获取模型列表失败: %w", err)
		}
		models = append(models, strings.TrimPrefix(info.Name, "models/"))
	}

	p.availableModels = models
	return nil
}

func (p *Provider) SetCustomModels(models []string) {
	if len(models) > 0 {
		p.availableModels = models
	}
}

func (p *Provider) configureModel(client *genai.Client, req llm.CompletionRequest, modelName string) *genai.GenerativeModel {
	model := client.GenerativeModel(modelName)
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	return model
}

func extractText(resp *genai.GenerateContentResponse) (string, string, error) {
	if len(resp.Candidates) == 0 {
		return "", "", errors.New("Gemini响应中没有candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", candidate.FinishReason.String(), errors.New("Gemini响应内容为空")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String(), candidate.FinishReason.String(), nil
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	client, err := p.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := p.configureModel(client, req, modelName)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini生成失败: %w", err)
	}

	text, finishReason, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	result := &llm.CompletionResponse{
		Text:         text,
		FinishReason: finishReason,
		ModelName:    modelName,
		ProviderName: p.GetName(),
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	client, err := p.newClient(ctx)
	if err != nil {
		return nil, err
	}

	model := p.configureModel(client, req, modelName)
	it := model.GenerateContentStream(ctx, genai.Text(req.Prompt))

	respChan := make(chan llm.StreamResponse)

	go func() {
		defer client.Close()
		defer close(respChan)

		var contentBuffer strings.Builder

		for {
			select {
			case <-ctx.Done():
				return
			default:
				resp, err := it.Next()
				if err == iterator.Done {
					respChan <- llm.StreamResponse{
						Text:         contentBuffer.String(),
						FinishReason: "stop",
						ModelName:    modelName,
						Done:         true,
					}
					return
				}
				if err != nil {
					respChan <- llm.StreamResponse{
						Text:         contentBuffer.String(),
						FinishReason: "error",
						ModelName:    modelName,
						Done:         true,
					}
					return
				}

				text, _, err := extractText(resp)
				if err != nil {
					continue
				}
				if text != "" {
					contentBuffer.WriteString(text)
					respChan <- llm.StreamResponse{
						Text:      text,
						ModelName: modelName,
						Done:      false,
					}
				}
			}
		}
	}()

	return respChan, nil
}
