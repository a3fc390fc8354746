// 包 anthropic Anthropic Messages API 的解释后端
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
)

// DefaultBaseURL Anthropic API 默认地址
const DefaultBaseURL = "https://api.anthropic.com"

// apiVersion Messages API 版本头
const apiVersion = "2023-06-01"

// maxTokens 单次应答的 token 上限
const maxTokens = 1024

// Config 客户端配置
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client Anthropic Messages API 客户端，实现 copilot 的 Explainer 策略
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExplainIssue 请求模型解释一条对账问题
func (c *Client) ExplainIssue(ctx context.Context, issue *domain.ReconciliationIssue, trade *domain.Trade) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Explain the following reconciliation issue to an operations analyst.\n\n")
	fmt.Fprintf(&prompt, "Issue type: %s\nSeverity: %s\nDescription: %s\n", issue.IssueType, issue.Severity, issue.Description)
	if trade != nil {
		fmt.Fprintf(&prompt, "\nRelated trade:\nTrader: %s\nInstrument: %s\nQuantity: %s\nPrice: %s\nSide: %s\n",
			trade.Trader, trade.Instrument, trade.Quantity, trade.Price, trade.Side)
	}
	prompt.WriteString("\nGive the likely cause and a suggested next step, in plain language.")

	return c.complete(ctx, "You are an operations reconciliation assistant for a trading desk.", prompt.String())
}

// AnswerQuery 基于状态快照回答自然语言问题
func (c *Client) AnswerQuery(ctx context.Context, query string, status string) (string, error) {
	prompt := fmt.Sprintf("Current system state:\n\n%s\nQuestion: %s", status, query)
	return c.complete(ctx, "You are an operations reconciliation assistant. Answer using only the provided system state.", prompt)
}

// complete 调用 Messages API 并取第一个文本块
func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("api error %d (%s): %s", resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
		}
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(data))
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("empty completion in response")
}
