package stream

import (
	"errors"
	"fmt"
)

// FailureKind 合成失败分类，决定是否重试
type FailureKind int

const (
	// FailureConnect 建连失败，可重试
	FailureConnect FailureKind = iota
	// FailureTransient 收发过程中的瞬时失败，可重试
	FailureTransient
	// FailureCompletionTimeout 等待终止信号超时，可重试
	FailureCompletionTimeout
	// FailureProvider 服务端显式错误，不重试
	FailureProvider
	// FailureDecode 音频解码失败，不重试
	FailureDecode
	// FailureExhausted 重试次数耗尽后的终态失败
	FailureExhausted
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnect:
		return "connect"
	case FailureTransient:
		return "transient"
	case FailureCompletionTimeout:
		return "completion_timeout"
	case FailureProvider:
		return "provider"
	case FailureDecode:
		return "decode"
	case FailureExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Retryable 该类失败是否允许换连接重试
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureConnect, FailureTransient, FailureCompletionTimeout:
		return true
	default:
		return false
	}
}

// SynthesisError 一次分句合成尝试的失败
type SynthesisError struct {
	Kind     FailureKind
	Sequence uint32
	Attempt  int
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis failed: kind=%s seq=%d attempt=%d: %v", e.Kind, e.Sequence, e.Attempt, e.Err)
	}
	return fmt.Sprintf("synthesis failed: kind=%s seq=%d attempt=%d", e.Kind, e.Sequence, e.Attempt)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func newSynthesisError(kind FailureKind, seq uint32, attempt int, err error) *SynthesisError {
	return &SynthesisError{Kind: kind, Sequence: seq, Attempt: attempt, Err: err}
}

// FailureKindOf 提取错误的失败分类，非本包错误按瞬时处理
func FailureKindOf(err error) FailureKind {
	var se *SynthesisError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureTransient
}
