package dashboard

var stageTitlesZH = map[string]string{
	"Form I-130/I-140 Filed": "表格 I-130/I-140 已提交",
	"USCIS Receipt Notice":   "USCIS 收据通知",
	"Biometrics Completed":   "生物识别已完成",
	"EAD/AP Issued":          "EAD/AP 已发放",
	"Case Transferred":       "案件已转移",
	"Interview Scheduled":    "面试已安排",
	"Interview Completed":    "面试已完成",
	"Green Card Approved":    "绿卡已批准",
	"Green Card Produced":    "绿卡已制作",
	"Green Card Delivered":   "绿卡已送达",
	"Case Complete":          "案件已完成",
}

var stageDescriptionsZH = map[string]string{
	"Initial petition has been filed with USCIS":                     "初始申请已向 USCIS 提交",
	"USCIS has sent confirmation of receipt":                         "USCIS 已发送收据确认",
	"Fingerprints and photos have been taken":                        "已采集指纹和照片",
	"Employment Authorization and/or Advance Parole document issued": "工作许可和/或提前假释文件已发放",
	"Case has been transferred between USCIS offices":                "案件已在 USCIS 办公室之间转移",
	"Interview notice has been sent":                                 "面试通知已发送",
	"Adjustment of status interview has been conducted":              "身份调整面试已进行",
	"Final approval decision has been made":                          "最终批准决定已做出",
	"Physical green card has been produced":                          "实体绿卡已制作",
	"Physical green card has been delivered":                         "实体绿卡已送达",
}

// TranslateStageTitle returns the Chinese stage title, or title itself when unknown.
func TranslateStageTitle(title string) string {
	if zh, ok := stageTitlesZH[title]; ok {
		return zh
	}
	return title
}

// TranslateStageDescription returns the Chinese stage description, or description itself when unknown.
func TranslateStageDescription(description string) string {
	if zh, ok := stageDescriptionsZH[description]; ok {
		return zh
	}
	return description
}
