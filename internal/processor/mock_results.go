package processor

import "resume-analyzer/internal/types"

// MockResumeRecord 未配置模型时返回的占位解析结果
func MockResumeRecord() *types.ResumeRecord {
	return &types.ResumeRecord{
		BasicInfo: types.BasicInfo{
			Name:    types.StringPtr("Test User"),
			Phone:   types.StringPtr("123456789"),
			Email:   types.StringPtr("test@test.com"),
			Address: types.StringPtr("Beijing"),
		},
		JobIntention:        types.StringPtr("Software Engineer"),
		WorkYears:           types.StringPtr("3 years"),
		EducationBackground: types.StringPtr("Bachelor of Computer Science"),
		RawTextSummary:      types.StringPtr("Skilled in Python and React."),
	}
}

// MockMatchResult 未配置模型时返回的占位匹配结果
func MockMatchResult() *types.MatchResult {
	return &types.MatchResult{
		Score:               85,
		SkillsMatchRate:     "85%",
		ExperienceRelevance: "Highly relevant",
		Comment:             "This candidate fits well.",
	}
}
