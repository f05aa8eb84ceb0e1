// Package json 统一 pdfrag 的 JSON 编解码入口。
// amd64/arm64 上使用 sonic（与 encoding/json 行为兼容的配置），其余架构回退到标准库。
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// RawMessage 延迟解码的原始 JSON。
type RawMessage = stdjson.RawMessage

// Encoder 流式编码器。
type Encoder interface {
	Encode(v any) error
}

// Decoder 流式解码器。
type Decoder interface {
	Decode(v any) error
}

// codec 是两种实现共同的最小接口，sonic.API 直接满足。
type codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	MarshalIndent(v any, prefix, indent string) ([]byte, error)
}

type stdCodec struct{}

func (stdCodec) Marshal(v any) ([]byte, error) { return stdjson.Marshal(v) }
func (stdCodec) Unmarshal(data []byte, v any) error { return stdjson.Unmarshal(data, v) }
func (stdCodec) MarshalIndent(v any, p, i string) ([]byte, error) {
	return stdjson.MarshalIndent(v, p, i)
}

var (
	impl      codec = stdCodec{}
	newEnc          = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	newDec          = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
	sonicUsed bool
)

func init() {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		api := sonic.ConfigStd
		impl = api
		newEnc = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		newDec = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		sonicUsed = true
	}
}

// Marshal 编码 v。
func Marshal(v any) ([]byte, error) { return impl.Marshal(v) }

// Unmarshal 将 data 解码到 v。
func Unmarshal(data []byte, v any) error { return impl.Unmarshal(data, v) }

// MarshalIndent 带缩进的 Marshal。
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return impl.MarshalIndent(v, prefix, indent)
}

// NewEncoder 返回写入 w 的编码器。
func NewEncoder(w io.Writer) Encoder { return newEnc(w) }

// NewDecoder 返回读取 r 的解码器。
func NewDecoder(r io.Reader) Decoder { return newDec(r) }

// IsUsingSonic 报告当前是否使用 sonic。
func IsUsingSonic() bool { return sonicUsed }
