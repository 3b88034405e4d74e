package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"

	// EntityData 简历结构化数据实体
	EntityData = "data"
	// EntityMatch 匹配结果实体
	EntityMatch = "match"

	// KeyResumeData 简历解析结果缓存 (STRING, JSON)
	// 格式: app:resume:data:{resumeID}
	KeyResumeData = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityData + ":%s"

	// KeyResumeMatch 简历与JD的匹配结果缓存 (STRING, JSON)
	// 格式: app:resume:match:{resumeID}:{jobHash}
	KeyResumeMatch = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityMatch + ":%s:%s"
)
