package portal

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/parapet/portal/pkg/httputil"
	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/session"
)

// GuestLanguageCookie carries a guest's locale choice across sessions.
const GuestLanguageCookie = "GUEST_LANGUAGE_ID"

// LocaleResolver resolves the request locale against the portal's available
// locales. Matching uses BCP 47 semantics, so "de" satisfies a "de-DE" offer.
type LocaleResolver struct {
	matcher   language.Matcher
	available []language.Tag
	fallback  string
}

// NewLocaleResolver builds a resolver over the configured locales, best
// first. The first locale is the fallback. Unparseable entries are skipped;
// an empty list falls back to en-US.
func NewLocaleResolver(locales []string) *LocaleResolver {
	tags := make([]language.Tag, 0, len(locales))
	for _, l := range locales {
		tag, err := language.Parse(l)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		tags = []language.Tag{language.AmericanEnglish}
	}
	return &LocaleResolver{
		matcher:   language.NewMatcher(tags),
		available: tags,
		fallback:  tags[0].String(),
	}
}

// Resolve walks the locale sources in precedence order: the doAs language
// override, the session-sticky locale, the signed-in user's preference, the
// guest language cookie, Accept-Language, then the company default. The
// winner is normalized to one of the available locales.
func (lr *LocaleResolver) Resolve(r *http.Request, sess *session.Session, user *model.User, company *model.Company, signedIn bool) string {
	if override := httputil.ParamString(r, "doAsUserLanguageId", ""); override != "" {
		if tag, ok := lr.match(override); ok {
			return tag
		}
	}
	if sticky := sess.Get(session.KeyLocale); sticky != "" {
		if tag, ok := lr.match(sticky); ok {
			return tag
		}
	}
	if signedIn && user.LanguageTag != "" {
		if tag, ok := lr.match(user.LanguageTag); ok {
			return tag
		}
	}
	if cookie := httputil.CookieValue(r, GuestLanguageCookie); cookie != "" {
		if tag, ok := lr.match(cookie); ok {
			return tag
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, conf := lr.matcher.Match(tags...)
			if conf > language.No {
				return lr.available[idx].String()
			}
		}
	}
	if company != nil && company.DefaultLocale != "" {
		if tag, ok := lr.match(company.DefaultLocale); ok {
			return tag
		}
	}
	return lr.fallback
}

// match normalizes one candidate locale to an available one.
func (lr *LocaleResolver) match(candidate string) (string, bool) {
	tag, err := language.Parse(candidate)
	if err != nil {
		return "", false
	}
	_, idx, conf := lr.matcher.Match(tag)
	if conf == language.No {
		return "", false
	}
	return lr.available[idx].String(), true
}

// Persist stores the resolved locale in the session and refreshes the guest
// language cookie so anonymous visitors keep their choice across sessions.
func (lr *LocaleResolver) Persist(w http.ResponseWriter, sess *session.Session, locale string) {
	sess.Set(session.KeyLocale, locale)
	http.SetCookie(w, &http.Cookie{
		Name:     GuestLanguageCookie,
		Value:    locale,
		Path:     "/",
		MaxAge:   int((365 * 24 * 60 * 60)),
		HttpOnly: false,
	})
}
