package storage

import "time"

// 提取路径
const (
	PathText   = "text"
	PathVision = "vision"
	PathMock   = "mock"
)

// ResumeAnalyzedEvent 简历解析完成事件，只携带指纹与摘要信息，不含个人信息
type ResumeAnalyzedEvent struct {
	ResumeID     string    `json:"resume_id"`
	Path         string    `json:"path"`
	ArchivedPath string    `json:"archived_path,omitempty"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// ResumeMatchedEvent 匹配完成事件
type ResumeMatchedEvent struct {
	ResumeID  string    `json:"resume_id"`
	JobID     string    `json:"job_id"`
	Score     int       `json:"score"`
	Mock      bool      `json:"mock,omitempty"`
	MatchedAt time.Time `json:"matched_at"`
}
