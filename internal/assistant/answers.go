package assistant

type cannedAnswer struct {
	keyword    string
	answer     string
	confidence float64
}

// Canned answers are matched in order against the lower-cased question.
var cannedAnswers = map[string][]cannedAnswer{
	"en": {
		{
			keyword: "document",
			answer: "For your application, you'll need these key documents:\n\n" +
				"1. Form I-485 (Application to Adjust Status)\n2. Form I-693 (Medical Examination)\n3. Passport copy\n" +
				"4. Birth certificate\n5. Marriage certificate (if applicable)\n6. Police certificates\n" +
				"7. Financial support evidence\n8. Employment letter\n\n" +
				"Prepare these documents early, as some (like medical exams) have time limitations.",
			confidence: 0.95,
		},
		{
			keyword: "interview",
			answer: "Green card interviews typically include questions about:\n\n" +
				"1. Your work background and current position\n2. Why you chose to work in the US\n" +
				"3. Your educational background\n4. Family situation\n5. Future plans\n6. Criminal history\n" +
				"7. Immigration violations\n\nBe honest with all answers and bring all requested documents.",
			confidence: 0.88,
		},
		{
			keyword:    "progress",
			answer:     "",
			confidence: 0.92,
		},
		{
			keyword: "medical",
			answer: "Medical exam preparation:\n\n" +
				"1. Find a USCIS-designated civil surgeon\n2. Bring vaccination records\n" +
				"3. Prepare exam fees ($200-500 typically)\n4. The I-693 report must be sealed\n" +
				"5. The medical exam is valid for 2 years\n6. Complete it within 3 months before the interview\n\n" +
				"You must personally submit the sealed medical report to the USCIS officer during your interview.",
			confidence: 0.90,
		},
	},
	"zh": {
		{
			keyword: "文件",
			answer: "您需要准备以下主要文件：\n\n" +
				"1. 表格I-485（调整身份申请）\n2. 表格I-693（体检报告）\n3. 护照复印件\n4. 出生证明\n" +
				"5. 结婚证（如适用）\n6. 警察证明\n7. 财务支持证明\n8. 雇主支持信\n\n" +
				"建议您提前准备这些文件，因为有些文件（如体检）有时效要求。",
			confidence: 0.95,
		},
		{
			keyword: "面试",
			answer: "绿卡面试通常会问以下问题：\n\n" +
				"1. 您的工作背景和当前职位\n2. 为什么选择在美国工作\n3. 您的教育背景\n4. 家庭情况\n" +
				"5. 未来的计划\n6. 是否有犯罪记录\n7. 是否曾经违反移民法\n\n" +
				"请诚实回答所有问题，并带齐所有要求的文件。",
			confidence: 0.88,
		},
		{
			keyword:    "进度",
			answer:     "",
			confidence: 0.92,
		},
		{
			keyword: "体检",
			answer: "体检准备要点：\n\n" +
				"1. 寻找USCIS指定的民事外科医生\n2. 带齐疫苗记录\n3. 准备体检费用（通常$200-500）\n" +
				"4. 体检报告I-693必须密封\n5. 体检有效期为2年\n6. 建议在面试前3个月内完成\n\n" +
				"注意：体检报告必须由您本人在面试时提交给USCIS官员。",
			confidence: 0.90,
		},
	},
}

// Progress answers are rendered from the caller's case.
var progressTemplates = map[string]string{
	"en": "Based on your case information, you are currently at stage {{{current_stage_id}}} ({{{current_stage}}}). " +
		"Your next step, {{{next_stage}}}, is expected around {{{expected_date}}} " +
		"({{{confidence}}} confidence), and the estimated completion date is {{{completion_date}}}.",
	"zh": "根据您的案件信息，您目前处于第{{{current_stage_id}}}阶段（{{{current_stage}}}）。" +
		"下一步“{{{next_stage}}}”预计在 {{{expected_date}}} 左右，预计完成日期为 {{{completion_date}}}。",
}

var genericProgress = map[string]string{
	"en": "Case progress depends on your visa category, processing center and country of birth. " +
		"Open your case dashboard to see your current stage, the next expected step and the estimated completion date.",
	"zh": "案件进度取决于您的签证类别、处理中心和出生国家。请打开您的案件面板查看当前阶段、下一步预计时间和预计完成日期。",
}

var defaultAnswers = map[string]string{
	"en": "Thank you for your question. I need more information to give you an accurate answer. I recommend:\n\n" +
		"1. Check the official USCIS website for the latest information\n2. Consult with your immigration attorney\n" +
		"3. Contact USCIS customer service\n\nIf you have more specific questions, I'd be happy to help.",
	"zh": "感谢您的问题。我需要更多信息来给您准确的答案。建议您：\n\n" +
		"1. 查看USCIS官方网站获取最新信息\n2. 咨询您的移民律师\n3. 联系USCIS客服热线\n\n如果您有更具体的问题，我很乐意帮助您。",
}
