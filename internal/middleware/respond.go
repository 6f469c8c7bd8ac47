package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
)

// LanguageHeader lets clients pick the response language per request.
const LanguageHeader = "X-Language"

// RequestLanguage returns the language the request asks for explicitly, via
// the lang query parameter or the X-Language header.
func RequestLanguage(r *http.Request) (i18n.Lang, bool) {
	for _, v := range []string{r.URL.Query().Get("lang"), r.Header.Get(LanguageHeader)} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if l, ok := i18n.Parse(v); ok {
			return l, true
		}
	}
	return "", false
}

func writeError(w http.ResponseWriter, r *http.Request, status int, key string) {
	lang, _ := RequestLanguage(r)
	if u := UserFrom(r.Context()); lang == "" && u != nil {
		lang = i18n.Normalize(u.PreferredLanguage)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": i18n.Default().T(i18n.Normalize(string(lang)), key),
	})
}
