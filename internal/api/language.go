package api

import (
	"net/http"

	"golang.org/x/text/language"
)

var (
	supportedLanguages = []language.Tag{language.English, language.Chinese}
	languageMatcher    = language.NewMatcher(supportedLanguages)
)

// requestLanguage returns "en" or "zh" from the lang query parameter, falling back to the
// Accept-Language header.
func requestLanguage(r *http.Request) string {
	pref := r.URL.Query().Get("lang")
	if pref == "" {
		pref = r.Header.Get("Accept-Language")
	}
	tag, _ := language.MatchStrings(languageMatcher, pref)
	base, _ := tag.Base()
	if base.String() == "zh" {
		return "zh"
	}
	return "en"
}
