package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ProofFlow-Chain/internal/reasoning"
	"ProofFlow-Chain/pkg/logger"
)

const (
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
)

// Config 描述了调用 OpenAI 兼容 Chat Completions API 所需的信息。
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// Client 通过 go-openai 调用大模型。
type Client struct {
	client      *goopenai.Client
	model       string
	timeout     time.Duration
	temperature float32
	logger      *slog.Logger
}

var _ reasoning.Engine = (*Client)(nil)

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client:      goopenai.NewClientWithConfig(clientCfg),
		model:       model,
		timeout:     timeout,
		temperature: cfg.Temperature,
		logger:      logger.Named("reasoning"),
	}, nil
}

// Generate 发送问题并返回模型的原始文本。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: reasoning.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", reasoning.Unavailable(nil, "OpenAI 响应中没有有效的 choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", reasoning.Unavailable(nil, "OpenAI 响应内容为空")
	}
	c.logger.Debug("模型推理完成",
		slog.String("model", c.model),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return content, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return reasoning.Timeout(err, "OpenAI 调用超时")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return reasoning.Timeout(err, "OpenAI 调用超时")
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return reasoning.Timeout(err, "OpenAI 调用超时")
		}
		return reasoning.Unavailable(err, fmt.Sprintf("OpenAI 返回错误状态 %d", apiErr.HTTPStatusCode))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusGatewayTimeout {
			return reasoning.Timeout(err, "OpenAI 调用超时")
		}
		return reasoning.Unavailable(err, fmt.Sprintf("OpenAI 返回错误状态 %d", reqErr.HTTPStatusCode))
	}
	return reasoning.Unavailable(err, "请求 OpenAI 失败")
}
