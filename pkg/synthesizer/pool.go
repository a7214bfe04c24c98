package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/code-100-precent/LingVoice/pkg/utils"
)

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("connection pool closed")
	// ErrAcquireTimeout 等待空闲连接超时
	ErrAcquireTimeout = errors.New("acquire connection timeout")
)

// PoolConfig 连接池配置
type PoolConfig struct {
	// MaxConnections 池内连接数上限，默认 8
	MaxConnections int `json:"max_connections" yaml:"max_connections"`
	// AcquireTimeout 池满时等待空闲连接的最长时间，默认 5s
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
	// MaxSessionAge 连接最长存活时间，超龄连接取出时淘汰重建，默认 10m
	MaxSessionAge time.Duration `json:"max_session_age" yaml:"max_session_age"`
}

// NewPoolConfigFromEnv 从环境变量构造池配置
func NewPoolConfigFromEnv() PoolConfig {
	return PoolConfig{
		MaxConnections: utils.GetIntEnv("TTS_POOL_MAX_CONNECTIONS", 8),
		AcquireTimeout: utils.GetDurationEnv("TTS_POOL_ACQUIRE_TIMEOUT", 5*time.Second),
		MaxSessionAge:  utils.GetDurationEnv("TTS_POOL_MAX_SESSION_AGE", 10*time.Minute),
	}
}

func (c *PoolConfig) withDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 8
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = 10 * time.Minute
	}
}

// PooledConn 池内的一条连接及其元数据
type PooledConn struct {
	ID        string
	Conn      Conn
	CreatedAt time.Time
	// Configured 本连接是否已发送过语音配置。
	// 复用已配置的连接可以跳过 config 消息。
	Configured bool
	// ConfigDigest 已发送配置的指纹，指纹不符时必须淘汰重建
	ConfigDigest string
}

func (pc *PooledConn) expired(maxAge time.Duration) bool {
	return time.Since(pc.CreatedAt) > maxAge
}

// Pool 到合成后端的连接池。
// 所有状态迁移互斥，空闲连接复用优先于新建。
type Pool struct {
	backend Backend
	cfg     PoolConfig

	mu      sync.Mutex
	idle    []*PooledConn
	numOpen int
	closed  bool

	// notify 唤醒等待空闲连接的 Acquire
	notify chan struct{}
}

// NewPool 创建连接池，不建立任何连接
func NewPool(backend Backend, cfg PoolConfig) *Pool {
	cfg.withDefaults()
	return &Pool{
		backend: backend,
		cfg:     cfg,
		notify:  make(chan struct{}, 1),
	}
}

// Prewarm 预建 n 条连接放入空闲队列，受池上限约束。
// 任何一条建连失败即停止并返回错误，已建连接保留。
func (p *Pool) Prewarm(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrPoolClosed
		}
		if p.numOpen >= p.cfg.MaxConnections {
			p.mu.Unlock()
			return nil
		}
		p.numOpen++
		p.mu.Unlock()

		pc, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.numOpen--
			p.mu.Unlock()
			return fmt.Errorf("prewarm connection %d: %w", i, err)
		}
		p.putIdle(pc)
	}
	return nil
}

// Acquire 取出一条可用连接。优先复用空闲连接，超龄连接就地淘汰；
// 池未满时新建；池满时阻塞等待，超过 AcquireTimeout 报错。
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		// 复用空闲连接，超龄的就地淘汰
		for len(p.idle) > 0 {
			pc := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			if pc.expired(p.cfg.MaxSessionAge) {
				p.numOpen--
				p.mu.Unlock()
				log.Debugf("淘汰超龄连接: %s, age=%v", pc.ID, time.Since(pc.CreatedAt))
				_ = pc.Conn.Close()
				p.mu.Lock()
				continue
			}
			remain := len(p.idle)
			p.mu.Unlock()
			if remain > 0 {
				// 还有空闲连接，接力唤醒其他等待者
				p.wake()
			}
			return pc, nil
		}

		// 无空闲且未达上限，新建
		if p.numOpen < p.cfg.MaxConnections {
			p.numOpen++
			p.mu.Unlock()
			pc, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.numOpen--
				p.mu.Unlock()
				return nil, err
			}
			return pc, nil
		}
		p.mu.Unlock()

		// 池满，等待 Release/Evict 唤醒
		select {
		case <-p.notify:
		case <-timer.C:
			return nil, ErrAcquireTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release 归还一条健康连接供复用
func (p *Pool) Release(pc *PooledConn) {
	if pc == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.numOpen--
		p.mu.Unlock()
		_ = pc.Conn.Close()
		return
	}
	p.mu.Unlock()
	p.putIdle(pc)
}

// Evict 销毁一条状态可疑的连接，腾出池容量
func (p *Pool) Evict(pc *PooledConn) {
	if pc == nil {
		return
	}
	_ = pc.Conn.Close()
	p.mu.Lock()
	p.numOpen--
	p.mu.Unlock()
	p.wake()
	log.Debugf("连接已销毁: %s", pc.ID)
}

// Close 关闭池并断开所有空闲连接。已借出连接在归还时关闭。
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.numOpen -= len(idle)
	p.mu.Unlock()

	for _, pc := range idle {
		_ = pc.Conn.Close()
	}
	log.Infof("连接池已关闭, 断开空闲连接 %d 条", len(idle))
}

// NumOpen 当前打开的连接数（含已借出）
func (p *Pool) NumOpen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numOpen
}

// NumIdle 当前空闲连接数
func (p *Pool) NumIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *Pool) dial(ctx context.Context) (*PooledConn, error) {
	conn, err := p.backend.Connect(ctx)
	if err != nil {
		return nil, err
	}
	pc := &PooledConn{
		ID:        uuid.New().String(),
		Conn:      conn,
		CreatedAt: time.Now(),
	}
	log.Debugf("新建连接: %s", pc.ID)
	return pc, nil
}

func (p *Pool) putIdle(pc *PooledConn) {
	p.mu.Lock()
	p.idle = append(p.idle, pc)
	p.mu.Unlock()
	p.wake()
}

func (p *Pool) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
