package llm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider 测试与离线开发用的 Provider 实现。
// 按序返回预置响应，记录每次调用的请求，支持错误注入。
type MockProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	errs      []error
	calls     []*ChatRequest
	index     int
	delay     time.Duration
}

// NewMockProvider 创建空脚本的 MockProvider。
// 未预置响应时返回固定的占位回答。
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// WithResponse 追加一条预置的文本响应。
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse(content))
	m.errs = append(m.errs, nil)
	return m
}

// WithError 追加一次错误注入。
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
	return m
}

// WithDelay 设置每次调用的模拟延迟。
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	i := m.index
	m.index++
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) && m.responses[i] != nil {
		return m.responses[i], nil
	}
	return mockResponse("This is a mock response for testing purposes."), nil
}

func (m *MockProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true, Latency: 0}, nil
}

// Calls 返回截至目前记录的全部请求副本。
func (m *MockProvider) Calls() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回 Completion 的调用次数。
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset 清空脚本与调用记录。
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = nil
	m.errs = nil
	m.calls = nil
	m.index = 0
}

func mockResponse(content string) *ChatResponse {
	return &ChatResponse{
		ID:       "mock-" + uuid.NewString(),
		Provider: "mock",
		Model:    "mock-model",
		Choices: []ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message:      Message{Role: RoleAssistant, Content: content},
			},
		},
		Usage: ChatUsage{
			PromptTokens:     50,
			CompletionTokens: 25,
			TotalTokens:      75,
		},
		CreatedAt: time.Now(),
	}
}
