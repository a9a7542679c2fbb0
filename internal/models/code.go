package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Code 远端以字符串返回的数值编码（stcd、useyn、inspectionflag），如 "00"、"06"、"1"
// 解析推迟到使用处，单条记录格式错误不会导致整批反序列化失败
type Code string

// UnmarshalJSON 兼容字符串、数字和布尔值
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case bytes.Equal(data, []byte("true")):
		*c = "1"
	case bytes.Equal(data, []byte("false")):
		*c = "0"
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal code: %w", err)
		}
		*c = Code(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("failed to unmarshal code: %w", err)
		}
		*c = Code(n.String())
	}
	return nil
}

// Int 将编码解析为整数
func (c Code) Int() (int, error) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return 0, fmt.Errorf("empty numeric code")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric code %q", string(c))
	}
	return v, nil
}

// IsSet 非零即为真（useyn=1 使用中，inspectionflag=1 检修中）
func (c Code) IsSet() (bool, error) {
	v, err := c.Int()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
