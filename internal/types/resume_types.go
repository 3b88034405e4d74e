package types

// BasicInfo 简历基本信息
// 字段使用指针，区分"简历中没有"与"值为空字符串"
type BasicInfo struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

// ResumeRecord 从简历中抽取的结构化数据
// 以原始文件内容的哈希为标识，缓存后不可变
type ResumeRecord struct {
	BasicInfo           BasicInfo `json:"basic_info"`
	JobIntention        *string   `json:"job_intention"`
	WorkYears           *string   `json:"work_years"` // 自由文本，例如 "5年"
	EducationBackground *string   `json:"education_background"`
	RawTextSummary      *string   `json:"raw_text_summary"`
}

// MatchResult 简历与岗位描述的匹配评估
type MatchResult struct {
	// 匹配分数 (0-100)
	Score               int    `json:"score"`
	SkillsMatchRate     string `json:"skills_match_rate"`
	ExperienceRelevance string `json:"experience_relevance"`
	Comment             string `json:"comment"`
}

// AnalyzeResponse POST /api/resume/analyze 的响应
type AnalyzeResponse struct {
	ResumeID string        `json:"resume_id"`
	Data     *ResumeRecord `json:"data"`
	Message  string        `json:"message"`
}

// MatchRequest POST /api/resume/match 的请求体
type MatchRequest struct {
	ResumeID       string `json:"resume_id" validate:"required"`
	JobDescription string `json:"job_description" validate:"required"`
}

// MatchResponse POST /api/resume/match 的响应
type MatchResponse struct {
	ResumeID    string       `json:"resume_id"`
	MatchResult *MatchResult `json:"match_result"`
	Message     string       `json:"message"`
}

// ErrorBody 统一的错误响应
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail 错误码与可读信息
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}
