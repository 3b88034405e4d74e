package processor

// extractionSystemPrompt 文本与图片两条解析路径共用
const extractionSystemPrompt = `你是一个专业的HR简历解析助手。请从给定的简历内容中提取以下关键信息，并严格按照下方的JSON格式返回，不要包含其他无关内容或说明文字。
{
    "basic_info": {
        "name": "姓名，若无返回null",
        "phone": "电话号码，若无返回null",
        "email": "邮件地址，若无返回null",
        "address": "籍贯或地址，若无返回null"
    },
    "job_intention": "求职意向/目标岗位，若无返回null",
    "work_years": "工作总年限字符串，如'5年'，若无返回null",
    "education_background": "最高学历描述，若无返回null",
    "raw_text_summary": "一段关于候选人核心技能的简要总结（100字以内）"
}
`

const extractionTextUserPrompt = "这是待解析的简历文本：\n%s"

const extractionVisionUserPrompt = "请仔细分析以下简历图片中的所有文字信息并提取关键信息："

const scoringSystemPrompt = `你是一个资深的招聘专家。你需要评估一份已解析的简历提取数据与目标招聘岗位需求描述的匹配程度。
请分析后给出一个匹配度打分（0-100的整数），并给出各项的匹配评价，严格按照如下JSON格式返回：
{
    "score": 匹配度打分整数值,
    "skills_match_rate": "技能要求匹配度分析及百分比感觉",
    "experience_relevance": "经验与行业相关性分析",
    "comment": "综合短评（50字内）"
}
`

const scoringUserPrompt = "岗位需求：\n%s\n\n简历摘要数据：\n%s"
