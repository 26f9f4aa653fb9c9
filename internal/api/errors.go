package api

import (
	"errors"
	"fmt"
)

// ErrorKind 划分请求失败的类别，调用方据此决定日志口径
// 所有类别都是可恢复的：跳过本周期，下一周期自然重试。
type ErrorKind int

const (
	KindNetwork     ErrorKind = iota // 传输层失败（连接、超时）
	KindHTTPStatus                   // 非 2xx 状态码
	KindDecode                       // 响应体不是合法 JSON
	KindApplication                  // retCode != 0 的业务失败
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	case KindApplication:
		return "application"
	}
	return "unknown"
}

// RequestError 是网关所有失败路径的统一错误类型
type RequestError struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int    // KindHTTPStatus 时有效
	Body       string // KindHTTPStatus / KindDecode 时保留原始响应体
	RetCode    int    // KindApplication 时有效
	RetMsg     string // KindApplication 时有效
	Err        error  // 底层错误（KindNetwork / KindDecode）
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("request %s failed: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	case KindApplication:
		return fmt.Sprintf("request %s failed: retCode %d: %s", e.Endpoint, e.RetCode, e.RetMsg)
	default:
		return fmt.Sprintf("request %s failed (%s): %v", e.Endpoint, e.Kind, e.Err)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsKind 判断 err 是否为指定类别的请求错误
func IsKind(err error, kind ErrorKind) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == kind
}
