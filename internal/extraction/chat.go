package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Chat implements the Extractor interface against any OpenAI-compatible
// /v1/chat/completions endpoint (SiliconCloud, Ollama, vLLM, ...).
type Chat struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewChat creates a new Chat Extractor instance
func NewChat(baseURL, apiKey, modelName string) (*Chat, error) {
	if baseURL == "" {
		baseURL = "https://api.siliconflow.cn"
	}
	if modelName == "" {
		modelName = "Qwen/Qwen2.5-7B-Instruct"
	}

	return &Chat{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// extractSystemPrompt builds the system prompt carrying the category
// taxonomy. The wording follows the upstream contract: a JSON array of
// book objects, null for unknown fields, no prose around the JSON.
func extractSystemPrompt(taxonomy []string) string {
	var b strings.Builder
	b.WriteString(`你是一个专业的书籍信息提取助手。
用户会给你一段从书脊图片中识别出的原始文本（可能有噪声和错误，---BOOK_SEPARATOR--- 分隔不同书籍）。

你的任务是：
1. 从文本中识别出所有书籍
2. 提取每本书的信息并返回 JSON 数组

每本书需要提取以下字段:
- title: 书名 (必填)
- author: 作者 (如果能识别出，否则为 null)
- publisher: 出版社 (如果能识别出，否则为 null)
- edition: 版次，如"第7版" (如果有，否则为 null)
- category: 学科分类，从以下选项中选择:
  [`)
	for i, c := range taxonomy {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + c + `"`)
	}
	b.WriteString(`]

输出格式要求:
- 必须是合法的 JSON 数组
- 不要输出任何解释文字，只输出纯 JSON
- 如果某个字段无法识别，设为 null`)
	return b.String()
}

// Extract sends the recognized text to the chat endpoint and parses the
// structured reply. A malformed reply is retried exactly once with the
// same input; a second malformed reply, or any transport failure, is
// terminal and returns *ExtractionError carrying the raw text.
func (c *Chat) Extract(ctx context.Context, rawText string, taxonomy []string) ([]Candidate, error) {
	var parseErr error
	for attempt := 0; attempt < 2; attempt++ {
		reply, err := c.complete(ctx, rawText, taxonomy)
		if err != nil {
			return nil, &ExtractionError{RawText: rawText, Err: err}
		}

		candidates, rejected, err := parseCandidates(reply)
		if err != nil {
			parseErr = err
			slog.Warn("Malformed extraction response", "attempt", attempt+1, "error", err)
			continue
		}
		for _, reason := range rejected {
			slog.Warn("Dropped extraction item", "reason", reason)
		}
		return candidates, nil
	}

	return nil, &ExtractionError{RawText: rawText, Err: fmt.Errorf("malformed response after retry: %w", parseErr)}
}

func (c *Chat) complete(ctx context.Context, rawText string, taxonomy []string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   2000,
		Messages: []chatMessage{
			{Role: "system", Content: extractSystemPrompt(taxonomy)},
			{Role: "user", Content: "请从以下识别文本中提取书籍信息：\n\n" + rawText},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Close closes the Chat client (no-op for HTTP client)
func (c *Chat) Close() error {
	return nil
}
