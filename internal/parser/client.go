package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hireLens/internal/config"
)

const processPath = "/process"

// ProcessRequest 是发往外部解析/打分服务的派发载荷。
// FileData carries the whole resume as base64; the parser never shares a
// filesystem with this process.
type ProcessRequest struct {
	JobID       uint   `json:"jobId"`
	CandidateID uint   `json:"candidateId"`
	Filename    string `json:"filename"`
	FileData    string `json:"fileData"`
}

// Client 负责调用外部解析服务。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 根据配置构造解析服务客户端，超时由配置给定。
func NewClient(cfg config.ParserConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("parser base url missing")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		return nil, fmt.Errorf("parser timeout must be positive")
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Process 将一份简历提交给解析服务。
// 响应体不做 Schema 校验：结果通过内部回写接口异步落库，这里只关心请求
// 是否被接受。
func (c *Client) Process(ctx context.Context, req ProcessRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal process request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build process request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request parser service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return fmt.Errorf("parser service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return nil
}
