package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// envelope 是 Bybit V5 所有接口的统一响应外壳
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// Client 负责构造带签名的交易所请求
// 签名规则：参数按 key 字典序排列，以 key=value 用 & 连接，
// 用账户密钥做 HMAC-SHA256，十六进制摘要作为 sign 参数附加。
// 签名必须覆盖最终发送的完整参数集（api_key、timestamp 在内），
// 签名之后再添加任何参数都会导致校验失败。
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
	logger    *zap.Logger

	// now 可注入，便于测试固定时间戳
	now func() time.Time
}

// NewClient 初始化签名网关
func NewClient(apiKey, apiSecret, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		logger:    logger.With(zap.String("component", "api")),
		now:       time.Now,
	}
}

// BoolParam 把布尔参数序列化为交易所要求的小写字符串字面量
// 线路协议是字符串类型的，reduceOnly 等开关不能按语言原生布尔发送。
func BoolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Send 发送一次签名请求，返回 result 字段的原始 JSON
// 四类失败（网络 / 状态码 / 解码 / retCode != 0）全部以 *RequestError 返回，
// 调用方必须把每次请求当作可失败处理。
func (c *Client) Send(ctx context.Context, method, endpoint string, params map[string]string) (json.RawMessage, error) {
	// 复制一份，避免修改调用方的参数集
	all := make(map[string]string, len(params)+3)
	for k, v := range params {
		all[k] = v
	}
	all["api_key"] = c.apiKey
	all["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
	all["sign"] = c.sign(all)

	req, err := c.buildRequest(ctx, method, endpoint, all)
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}

	// 日志不落盘 sign，密钥本身从不进入参数集
	c.logger.Info("Request sent",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Any("params", sanitize(all)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Kind: KindHTTPStatus, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &RequestError{Kind: KindDecode, Endpoint: endpoint, Body: string(body), Err: err}
	}

	if env.RetCode != 0 {
		return nil, &RequestError{Kind: KindApplication, Endpoint: endpoint, RetCode: env.RetCode, RetMsg: env.RetMsg}
	}

	return env.Result, nil
}

// buildRequest GET 走查询串，POST 走 JSON 体，参数集完全一致
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params map[string]string) (*http.Request, error) {
	fullURL := c.baseURL + endpoint

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// sign 在排序后的参数串上计算 HMAC-SHA256 摘要
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitize 去掉不允许进入日志的字段
func sanitize(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if k == "sign" {
			continue
		}
		out[k] = v
	}
	return out
}
