// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Nil 是 key 不存在时 go-redis 返回的错误，方便上层不直接依赖 go-redis。
const Nil = goredis.Nil

// Options 是创建客户端所需的连接参数
type Options struct {
	Addrs        string // "host1:port1,host2:port2"，多个地址时使用集群模式
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client 封装了 go-redis 的通用客户端，并统一管理 Lua 脚本。
type Client struct {
	rdb goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 根据地址创建客户端并立即 Ping 一次，连接不上直接返回错误。
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	addrs := strings.Split(opts.Addrs, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        addrs,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "failed to ping redis at %s", opts.Addrs)
	}
	return Wrap(rdb), nil
}

// Wrap 用一个已有的 go-redis 客户端构造 Client（测试中配合 miniredis 使用）。
func Wrap(rdb goredis.UniversalClient) *Client {
	return &Client{
		rdb:     rdb,
		scripts: make(map[string]*goredis.Script),
	}
}

// GetClient 返回底层的 go-redis 客户端
func (c *Client) GetClient() goredis.UniversalClient {
	return c.rdb
}

// LoadScriptFromContent 以 name 注册一段 Lua 脚本。
// 脚本通过 EVALSHA 执行，服务端没有缓存时 go-redis 会自动回退到 EVAL。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("script %q is empty", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// LoadScriptFromFile 从文件读取 Lua 脚本并注册
func (c *Client) LoadScriptFromFile(name, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read script file %s", path)
	}
	return c.LoadScriptFromContent(name, string(content))
}

// RunScript 执行已注册的脚本
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %q is not loaded", name)
	}
	result, err := script.Run(ctx, c.rdb, keys, args...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to run script %q", name)
	}
	return result, nil
}

// Close 关闭连接池
func (c *Client) Close() error {
	return c.rdb.Close()
}
