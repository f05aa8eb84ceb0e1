package errors

// 服务码 (AA)
const (
	ServiceCommon = 0  // 通用错误
	ServiceRAG    = 20 // 检索增强问答流水线
)

// 类别码 (BB)
const (
	CategoryRequest   = 1  // 请求或参数错误
	CategoryResource  = 4  // 资源不存在
	CategoryRateLimit = 6  // 限流
	CategoryInternal  = 7  // 内部错误
	CategoryStorage   = 8  // 向量库
	CategoryNetwork   = 10 // 上游模型或网络
	CategoryTimeout   = 11 // 超时
	CategoryConfig    = 12 // 配置
	CategoryDocument  = 13 // 文档解析
)

const (
	serviceFactor  = 100000
	categoryFactor = 1000
)

// MakeCode builds an AABBCCC code.
func MakeCode(service, category, sequence int) int {
	return service*serviceFactor + category*categoryFactor + sequence
}

// ParseCode splits an AABBCCC code into its parts.
func ParseCode(code int) (service, category, sequence int) {
	return code / serviceFactor, GetCategory(code), code % categoryFactor
}

// GetCategory returns the BB part of code.
func GetCategory(code int) int {
	return (code % serviceFactor) / categoryFactor
}

// IsClientError reports whether code falls in a category caused by the
// caller (request, resource or rate limit).
func IsClientError(code int) bool {
	switch GetCategory(code) {
	case CategoryRequest, CategoryResource, CategoryRateLimit:
		return true
	}
	return false
}
