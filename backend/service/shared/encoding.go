package shared

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// DecodeGBK 将中文 Windows 控制台输出（GBK 代码页）转为 UTF-8。
// 已经是合法 UTF-8 的输入原样返回。
func DecodeGBK(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
