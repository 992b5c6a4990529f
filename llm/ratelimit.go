package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider 在 Provider 之上套一层令牌桶限流。
// 超出速率时 Completion 阻塞等待令牌，ctx 取消则返回错误。
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider 包装 Provider，rps 为每秒请求数，burst 为突发上限。
// rps <= 0 时不限流。
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimitedProvider{inner: inner, limiter: limiter}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &Error{
				Code:     ErrRateLimited,
				Message:  "rate limit wait aborted: " + err.Error(),
				Provider: p.inner.Name(),
			}
		}
	}
	return p.inner.Completion(ctx, req)
}

func (p *RateLimitedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}
