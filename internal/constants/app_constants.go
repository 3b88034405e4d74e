package constants

// 接口返回的 message 字段
const (
	MessageSuccess       = "Success"
	MessageSuccessVision = "Success (Vision AI)"
	MessageCacheHit      = "Success (Cache Hit)"
	MessageMockAPI       = "Success (Mock API)"
	MessageMockMatch     = "Success (Mock Match)"
)

// 模型未给出字段时的默认值
const (
	DefaultNotAvailable = "N/A"
	DefaultMatchComment = "解析失败或模型未给出标准格式"
)
