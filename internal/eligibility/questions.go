package eligibility

// Question is one yes/no question of the questionnaire.
type Question struct {
	ID   string `json:"id"`
	EN   string `json:"en"`
	ZH   string `json:"zh"`
	Type string `json:"type"`
}

// Text returns the question in lang, defaulting to English.
func (q Question) Text(lang string) string {
	if lang == LangZH {
		return q.ZH
	}
	return q.EN
}

// CategoryText is the localized description of a category.
type CategoryText struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

// Category is a green-card category the questionnaire can recommend.
type Category struct {
	ID string       `json:"id"`
	EN CategoryText `json:"en"`
	ZH CategoryText `json:"zh"`
}

// Localized returns the category text in lang, defaulting to English.
func (c Category) Localized(lang string) CategoryText {
	if lang == LangZH {
		return c.ZH
	}
	return c.EN
}

// Category ids.
const (
	CategoryFamilyBasedImmediate = "FAMILY_BASED_IMMEDIATE"
	CategoryEB2                  = "EB2"
	CategoryConsultAttorney      = "CONSULT_ATTORNEY"
)

// Supported languages.
const (
	LangEN = "en"
	LangZH = "zh"
)

var questions = []Question{
	{
		ID:   "q1",
		EN:   "Are you currently employed in the U.S. with a visa?",
		ZH:   "你现在是否持有签证在美国工作？",
		Type: "boolean",
	},
	{
		ID:   "q2",
		EN:   "Do you have a Master's degree or higher?",
		ZH:   "您是否拥有硕士或更高学位？",
		Type: "boolean",
	},
	{
		ID:   "q3",
		EN:   "Are you married to a U.S. citizen or green card holder?",
		ZH:   "您是否与美国公民或绿卡持有者结婚？",
		Type: "boolean",
	},
	{
		ID:   "q4",
		EN:   "Are you related to a U.S. citizen or permanent resident?",
		ZH:   "您是否与美国公民或永久居民有亲属关系？",
		Type: "boolean",
	},
	{
		ID:   "q5",
		EN:   "Has a U.S. employer offered you a full-time job?",
		ZH:   "是否有美国雇主为您提供全职工作？",
		Type: "boolean",
	},
	{
		ID:   "q6",
		EN:   "Do you plan to self-petition based on extraordinary ability or national interest?",
		ZH:   "您是否计划基于特殊才能或国家利益进行自我申请？",
		Type: "boolean",
	},
}

var categories = []Category{
	{
		ID: CategoryFamilyBasedImmediate,
		EN: CategoryText{
			Title:       "Family-Based (Immediate Relative)",
			Description: "You may qualify for a green card as an immediate relative of a U.S. citizen.",
			Requirements: []string{
				"Must be married to a U.S. citizen",
				"Must be a parent of a U.S. citizen (if the U.S. citizen is 21 or older)",
				"Must be an unmarried child under 21 of a U.S. citizen",
			},
		},
		ZH: CategoryText{
			Title:       "家庭类（直系亲属）",
			Description: "作为美国公民的直系亲属，您可能符合绿卡申请条件。",
			Requirements: []string{
				"必须与美国公民结婚",
				"必须是美国公民的父母（如果美国公民年满21岁）",
				"必须是美国公民的21岁以下未婚子女",
			},
		},
	},
	{
		ID: CategoryEB2,
		EN: CategoryText{
			Title:       "Employment-Based (EB-2)",
			Description: "You may qualify for an EB-2 green card based on your advanced degree and job offer.",
			Requirements: []string{
				"Must have an advanced degree (Master's or higher)",
				"Must have a job offer from a U.S. employer",
				"Must have a PERM labor certification (unless applying for National Interest Waiver)",
			},
		},
		ZH: CategoryText{
			Title:       "就业类（EB-2）",
			Description: "基于您的高等学位和工作机会，您可能符合EB-2绿卡申请条件。",
			Requirements: []string{
				"必须拥有高等学位（硕士或更高）",
				"必须获得美国雇主的工作机会",
				"必须获得PERM劳工认证（除非申请国家利益豁免）",
			},
		},
	},
	{
		ID: CategoryConsultAttorney,
		EN: CategoryText{
			Title:       "Consult an Immigration Attorney",
			Description: "Your case may be more complex. We recommend consulting with an immigration attorney for personalized guidance.",
			Requirements: []string{
				"Your situation may involve multiple factors",
				"You may qualify for multiple categories",
				"Your case may require special consideration",
			},
		},
		ZH: CategoryText{
			Title:       "咨询移民律师",
			Description: "您的情况可能较为复杂。我们建议您咨询移民律师以获取个性化指导。",
			Requirements: []string{
				"您的情况可能涉及多个因素",
				"您可能符合多个类别的条件",
				"您的案件可能需要特殊考虑",
			},
		},
	},
}

// Questions returns the questionnaire in asking order.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

// Categories returns every category the questionnaire can recommend.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryByID returns the category with id.
func CategoryByID(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// NextQuestion returns the question asked after currentID, or "" after the last one.
// An unknown id starts the questionnaire from the beginning.
func NextQuestion(currentID string) string {
	idx := -1
	for i, q := range questions {
		if q.ID == currentID {
			idx = i
			break
		}
	}
	if idx == len(questions)-1 {
		return ""
	}
	return questions[idx+1].ID
}
