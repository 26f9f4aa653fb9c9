package service

import (
	"strconv"
)

func StringToFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func StringToInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// FloatToString 格式化下单数量等参数，避免科学计数法进入签名串
func FloatToString(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
