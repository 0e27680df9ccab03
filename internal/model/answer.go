package model

import (
	"fmt"
	"strings"
)

// Language is the answer language.
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageArabic  Language = "Arabic"
)

// Languages lists the supported languages in display order.
var Languages = []Language{LanguageEnglish, LanguageArabic}

// ParseLanguage accepts the display name or the ISO code, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return LanguageEnglish, nil
	case "arabic", "ar":
		return LanguageArabic, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Code returns the ISO 639-1 code.
func (l Language) Code() string {
	if l == LanguageArabic {
		return "ar"
	}
	return "en"
}

// CannedReason tells why an answer was produced without the generator.
type CannedReason string

const (
	ReasonNone          CannedReason = ""
	ReasonEmptyQuery    CannedReason = "empty_query"
	ReasonCorpusMissing CannedReason = "corpus_missing"
	ReasonNoResults     CannedReason = "no_results"
)

// Answer is the result of a single query.
type Answer struct {
	Text     string        `json:"answer"`
	Language Language      `json:"language"`
	Canned   bool          `json:"canned"`
	Reason   CannedReason  `json:"reason,omitempty"`
	Sources  []ChunkSource `json:"sources,omitempty"`
}

// Greeting holds the localized chat UI strings.
type Greeting struct {
	Language         Language `json:"language"`
	Title            string   `json:"title"`
	Welcome          string   `json:"welcome"`
	InputPlaceholder string   `json:"input_placeholder"`
	Thinking         string   `json:"thinking"`
	LanguageSelect   string   `json:"language_select"`
	ChangeLanguage   string   `json:"change_language"`
}
