// Package connectivity 通过本地 SOCKS5 入站探测代理是否可用。
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"hunter/backend/domain"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// ErrUnreachable 所有尝试均失败
var ErrUnreachable = errors.New("proxy unreachable")

const (
	DefaultTarget   = "http://google.com"
	DefaultAttempts = 3
)

// DefaultTimeout 单次探测超时；Windows 上握手明显更慢。
func DefaultTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 30 * time.Second
	}
	return 5 * time.Second
}

// Checker 连通性检测器
type Checker struct {
	Target   string
	Timeout  time.Duration
	Attempts int

	log *zap.Logger
}

func NewChecker() *Checker {
	return &Checker{
		Target:   DefaultTarget,
		Timeout:  DefaultTimeout(),
		Attempts: DefaultAttempts,
		log:      zap.L().Named("connectivity"),
	}
}

// Result 检测结果
type Result struct {
	Seconds  float64 `json:"seconds"`
	Attempts int     `json:"attempts"`
	Status   int     `json:"status"`
}

// Check 经 local 指向的 SOCKS5 入站发送 HEAD 请求，最多重试 Attempts 次。
// 耗时从第一次尝试开始计算。
func (c *Checker) Check(ctx context.Context, local domain.LocalEndpoint) (Result, error) {
	client, err := c.client(local)
	if err != nil {
		return Result{}, err
	}
	defer client.CloseIdleConnections()

	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	start := time.Now()
	var lastErr error
	for i := 1; i <= attempts; i++ {
		status, err := c.probe(ctx, client)
		if err == nil {
			res := Result{Seconds: time.Since(start).Seconds(), Attempts: i, Status: status}
			c.log.Info("proxy reachable", zap.Float64("seconds", res.Seconds), zap.Int("attempt", i))
			return res, nil
		}
		lastErr = err
		c.log.Debug("probe failed", zap.Int("attempt", i), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	c.log.Warn("proxy unreachable", zap.Int("attempts", attempts), zap.Error(lastErr))
	return Result{}, fmt.Errorf("%w via %s after %d attempts: %w", ErrUnreachable, local.SocksURL(), attempts, lastErr)
}

func (c *Checker) probe(ctx context.Context, client *http.Client) (int, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.Target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Checker) client(local domain.LocalEndpoint) (*http.Client, error) {
	addr := net.JoinHostPort(local.Address, strconv.Itoa(int(local.Port)))
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("create socks5 dialer: %w", err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support DialContext")
	}

	tr := &http.Transport{
		Proxy:             nil,
		DialContext:       cd.DialContext,
		DisableKeepAlives: true,
	}
	return &http.Client{
		Transport: tr,
		// 任何响应都说明链路可用，不跟随跳转
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}, nil
}
