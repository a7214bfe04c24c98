package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/code-100-precent/LingVoice/pkg/media"
)

// ErrStreamClosed 输入端已关闭后继续投喂
var ErrStreamClosed = errors.New("synthesis stream closed")

// StreamState 流状态机
type StreamState int32

const (
	// StateCollecting 接收投喂文本中
	StateCollecting StreamState = iota
	// StateDraining 输入已关闭，排空队列与在途分句
	StateDraining
	// StateCompleted 终止标记已发出
	StateCompleted
)

// StreamConfig 单条合成流配置
type StreamConfig struct {
	// MaxParallel 并发处理的分句数，默认 2。
	// 两路并行即可让下一句的合成与上一句的播放重叠。
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`
	// QueueSize 待处理分句队列长度，默认 16，队满时 Feed 阻塞
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	// FailFast 任一分句终态失败即中止整条流。
	// 关闭时跳过失败分句继续播报，调用方按降级处理。
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
}

func (c *StreamConfig) withDefaults() {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
}

// Segment 一个待合成分句，创建后不可变，恰好被消费一次
type Segment struct {
	ID       string
	Text     string
	Sequence uint32
	PlayID   string
}

// segmentTask 分句与其结果通道。结果通道由 worker 写入并关闭，
// 发射器按序号顺序逐个排空，乱序完成的分句在各自通道里等待。
type segmentTask struct {
	seg    *Segment
	frames chan media.AudioFrame
	err    error
}

// SynthesisStream 一条话语级合成流。分句器吃进文本，
// 有界 worker 池并行合成，发射器保证帧按分句序号有序送出，
// 输出通道关闭即是唯一的终止标记。
type SynthesisStream struct {
	id    string
	cfg   StreamConfig
	log   *zap.Logger
	state atomic.Int32

	// sendMu 串行化分句切割与入队，保证序号与入队顺序一致
	sendMu    sync.Mutex
	segmenter *Segmenter
	nextSeq   uint32
	closed    bool

	playID atomic.Pointer[string]

	segCh   chan *segmentTask
	orderCh chan *segmentTask
	frames  chan media.AudioFrame

	ctx    context.Context
	cancel context.CancelFunc

	errMu    sync.Mutex
	firstErr error

	workerWg  sync.WaitGroup
	emitterWg sync.WaitGroup
}

// newSynthesisStream 由 Service.OpenStream 调用，
// processors 数量即并行度，每个 worker 独占一个处理器
func newSynthesisStream(languageCode string, processors []*SegmentProcessor, cfg StreamConfig) *SynthesisStream {
	cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &SynthesisStream{
		id:        uuid.New().String(),
		cfg:       cfg,
		log:       logger.Named("synthesis_stream"),
		segmenter: NewSegmenter(languageCode),
		segCh:     make(chan *segmentTask, cfg.QueueSize),
		orderCh:   make(chan *segmentTask, cfg.QueueSize+cfg.MaxParallel),
		frames:    make(chan media.AudioFrame, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	play := uuid.New().String()
	s.playID.Store(&play)

	for _, proc := range processors {
		s.workerWg.Add(1)
		go s.worker(proc)
	}
	s.emitterWg.Add(1)
	go s.emitter()

	s.log.Info("合成流已打开",
		zap.String("stream_id", s.id),
		zap.Int("parallel", len(processors)))
	return s
}

// ID 流标识
func (s *SynthesisStream) ID() string { return s.id }

// State 当前状态
func (s *SynthesisStream) State() StreamState { return StreamState(s.state.Load()) }

// Frames 有序音频帧输出。通道关闭即流终止，且恰好关闭一次。
func (s *SynthesisStream) Frames() <-chan media.AudioFrame { return s.frames }

// Err 流终止后的首个终态失败，nil 表示正常完成
func (s *SynthesisStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.firstErr
}

// Feed 追加一段文本。切出的完整分句立即入队，队满时阻塞。
func (s *SynthesisStream) Feed(text string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	for _, segText := range s.segmenter.Feed(text) {
		if err := s.enqueue(segText); err != nil {
			return err
		}
	}
	return nil
}

// FlushSegmentBoundary 强制在当前位置断句，
// 用于生成轮次边界等需要立刻出声的场合
func (s *SynthesisStream) FlushSegmentBoundary() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if text := s.segmenter.Flush(); text != "" {
		return s.enqueue(text)
	}
	return nil
}

// Close 关闭输入端。残留文本作为末段入队（过短碎片丢弃），
// 随后进入排空阶段，全部帧送出后输出通道关闭。重复关闭无害。
func (s *SynthesisStream) Close() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.state.Store(int32(StateDraining))

	if text := s.segmenter.Flush(); text != "" {
		if err := s.enqueue(text); err != nil {
			s.log.Warn("末段入队失败", zap.Error(err))
		}
	}
	close(s.segCh)
	close(s.orderCh)
	return nil
}

// Abort 硬中止：取消在途网络交换，丢弃未出帧。
// 中途被打断的连接由 worker 淘汰而非归还。
func (s *SynthesisStream) Abort() {
	// 先取消再收口，避免与阻塞在满队列上的 Feed 互相等待
	s.cancel()
	s.closeInput()
}

// closeInput 幂等地关闭两个输入队列
func (s *SynthesisStream) closeInput() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.segmenter.Flush()
	close(s.segCh)
	close(s.orderCh)
}

// Interrupt 打断当前播报。轮换播放代次，旧代次的帧在发射器
// 处整体丢弃，分句缓冲清空，流本身保持可用。
func (s *SynthesisStream) Interrupt() {
	s.sendMu.Lock()
	_ = s.segmenter.Flush()
	s.sendMu.Unlock()

	play := uuid.New().String()
	s.playID.Store(&play)
	s.log.Info("播报被打断", zap.String("stream_id", s.id), zap.String("play_id", play))
}

func (s *SynthesisStream) currentPlayID() string {
	return *s.playID.Load()
}

// enqueue 把一个分句同时放入工作队列和顺序队列。
// 必须持有 sendMu，两个队列的入队顺序一致是有序性的根基。
func (s *SynthesisStream) enqueue(text string) error {
	task := &segmentTask{
		seg: &Segment{
			ID:       uuid.New().String(),
			Text:     text,
			Sequence: s.nextSeq,
			PlayID:   s.currentPlayID(),
		},
		frames: make(chan media.AudioFrame, s.cfg.QueueSize),
	}
	s.nextSeq++

	select {
	case s.orderCh <- task:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	select {
	case s.segCh <- task:
	case <-s.ctx.Done():
		// 任务已进顺序队列却到不了 worker，在这里收尾，
		// 否则排空路径会永久等一个没人关闭的通道
		task.err = s.ctx.Err()
		close(task.frames)
		return s.ctx.Err()
	}
	return nil
}

// worker 从队列取分句交给独占的处理器，结果写进分句自己的通道
func (s *SynthesisStream) worker(proc *SegmentProcessor) {
	defer s.workerWg.Done()
	defer func() {
		if err := proc.Close(); err != nil {
			s.log.Warn("关闭处理器失败", zap.Error(err))
		}
	}()

	for task := range s.segCh {
		emit := func(f media.AudioFrame) {
			select {
			case task.frames <- f:
			case <-s.ctx.Done():
			}
		}
		err := proc.Process(s.ctx, task.seg, emit)
		task.err = err
		close(task.frames)

		if err != nil && s.ctx.Err() == nil {
			s.log.Error("分句终态失败",
				zap.String("stream_id", s.id),
				zap.Uint32("seq", task.seg.Sequence),
				zap.Error(err))
		}
	}
}

// emitter 唯一的输出协程。按入队顺序逐个排空分句通道，
// 序号靠后的分句先完成也只能在自己的通道里等。
// 输出通道由且仅由这里关闭。
func (s *SynthesisStream) emitter() {
	defer s.emitterWg.Done()
	defer func() {
		s.state.Store(int32(StateCompleted))
		close(s.frames)
		s.log.Info("合成流已终止", zap.String("stream_id", s.id), zap.Error(s.Err()))
	}()

	for task := range s.orderCh {
		for f := range task.frames {
			// 被打断后旧代次的帧整体丢弃
			if f.PlayID != s.currentPlayID() {
				continue
			}
			select {
			case s.frames <- f:
			case <-s.ctx.Done():
				s.closeInput()
				s.drainTask(task)
				s.drainAll()
				return
			}
		}
		if task.err != nil {
			s.setErr(task.err)
			if s.cfg.FailFast {
				s.cancel()
				s.closeInput()
				s.drainAll()
				return
			}
		}
	}
}

func (s *SynthesisStream) setErr(err error) {
	s.errMu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.errMu.Unlock()
}

func (s *SynthesisStream) drainTask(task *segmentTask) {
	for range task.frames {
	}
	if task.err != nil {
		s.setErr(task.err)
	}
}

// drainAll 中止路径：排空剩余分句结果，防止 worker 卡在写入
func (s *SynthesisStream) drainAll() {
	for task := range s.orderCh {
		s.drainTask(task)
	}
}
