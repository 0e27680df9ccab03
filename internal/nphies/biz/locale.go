package biz

import (
	"strings"

	"github.com/kart-io/nphies-rag/internal/model"
)

// locale 单一语言下的全部文案与提示模板。
type locale struct {
	emptyQuery     string
	corpusMissing  string
	noResults      string
	instruction    string
	questionMarker string
	answerMarker   string
	greeting       model.Greeting
}

var locales = map[model.Language]locale{
	model.LanguageEnglish: {
		emptyQuery:     "⚠️ Please enter a question.",
		corpusMissing:  "⚠️ Nphies Q&A file not found.",
		noResults:      "❌ No relevant answer found in the Nphies database.",
		instruction:    "You are an intelligent assistant specialized in the NPHIES system. Use the following context to answer the question clearly and in English:\n\n",
		questionMarker: "\n\nQuestion: ",
		answerMarker:   "\nAnswer:",
		greeting: model.Greeting{
			Language:         model.LanguageEnglish,
			Title:            "🏥 NPHIES Chat Assistant",
			Welcome:          "👋 Hello! I'm your NPHIES assistant. How may I help you today?",
			InputPlaceholder: "Type your NPHIES question here...",
			Thinking:         "Thinking...",
			LanguageSelect:   "Select Language",
			ChangeLanguage:   "Change Language",
		},
	},
	model.LanguageArabic: {
		emptyQuery:     "⚠️ الرجاء إدخال سؤال.",
		corpusMissing:  "⚠️ ملف الأسئلة Nphies Q-A.txt غير موجود.",
		noResults:      "❌ لم يتم العثور على إجابة مشابهة في قاعدة بيانات نفيس.",
		instruction:    "أنت مساعد ذكي متخصص في نظام نفيس (NPHIES). استخدم المعلومات التالية للإجابة على السؤال بدقة وباللغة العربية:\n\n",
		questionMarker: "\n\nالسؤال: ",
		answerMarker:   "\nالإجابة:",
		greeting: model.Greeting{
			Language:         model.LanguageArabic,
			Title:            "🏥 مساعد نفيس",
			Welcome:          "👋 مرحبًا! أنا مساعد نفيس الذكي. كيف يمكنني مساعدتك اليوم؟",
			InputPlaceholder: "اكتب سؤالك حول نظام نفيس هنا...",
			Thinking:         "جاري التفكير...",
			LanguageSelect:   "اختر اللغة",
			ChangeLanguage:   "تغيير اللغة",
		},
	},
}

// localeFor 返回语言对应的文案，未知语言使用英文。
func localeFor(lang model.Language) locale {
	if l, ok := locales[lang]; ok {
		return l
	}
	return locales[model.LanguageEnglish]
}

// BuildContext 按距离由近到远拼接块文本。
func BuildContext(hits []model.Hit) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}

// BuildPrompt 组装发送给生成模型的提示。
func BuildPrompt(lang model.Language, hits []model.Hit, query string) string {
	l := localeFor(lang)

	var sb strings.Builder
	sb.WriteString(l.instruction)
	sb.WriteString(BuildContext(hits))
	sb.WriteString(l.questionMarker)
	sb.WriteString(query)
	sb.WriteString(l.answerMarker)
	return sb.String()
}

// Welcome 返回界面欢迎文案。
func Welcome(lang model.Language) model.Greeting {
	return localeFor(lang).greeting
}

// cannedAnswer 构造不经过生成模型的固定回答。
func cannedAnswer(lang model.Language, reason model.CannedReason) *model.Answer {
	l := localeFor(lang)
	if _, ok := locales[lang]; !ok {
		lang = model.LanguageEnglish
	}

	var text string
	switch reason {
	case model.ReasonEmptyQuery:
		text = l.emptyQuery
	case model.ReasonCorpusMissing:
		text = l.corpusMissing
	case model.ReasonNoResults:
		text = l.noResults
	}

	return &model.Answer{
		Text:     text,
		Language: lang,
		Canned:   true,
		Reason:   reason,
	}
}
