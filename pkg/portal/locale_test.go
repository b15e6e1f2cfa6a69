package portal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/session"
)

func localeRequest(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestLocaleResolver_PrecedenceChain(t *testing.T) {
	lr := NewLocaleResolver([]string{"en-US", "de-DE", "fr-FR"})
	company := &model.Company{DefaultLocale: "fr-FR"}
	user := &model.User{LanguageTag: "de-DE"}

	// Company default when nothing else speaks.
	got := lr.Resolve(localeRequest("/"), session.New(), user, company, false)
	assert.Equal(t, "fr-FR", got)

	// Accept-Language beats the company default.
	r := localeRequest("/")
	r.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	got = lr.Resolve(r, session.New(), user, company, false)
	assert.Equal(t, "de-DE", got)

	// The guest cookie beats Accept-Language.
	r.AddCookie(&http.Cookie{Name: GuestLanguageCookie, Value: "en-US"})
	got = lr.Resolve(r, session.New(), user, company, false)
	assert.Equal(t, "en-US", got)

	// A signed-in user's preference beats the cookie.
	got = lr.Resolve(r, session.New(), user, company, true)
	assert.Equal(t, "de-DE", got)

	// The session-sticky locale beats the user preference.
	sess := session.New()
	sess.Set(session.KeyLocale, "fr-FR")
	got = lr.Resolve(r, sess, user, company, true)
	assert.Equal(t, "fr-FR", got)

	// The impersonation override beats everything.
	r = localeRequest("/?doAsUserLanguageId=en-US")
	r.AddCookie(&http.Cookie{Name: GuestLanguageCookie, Value: "de-DE"})
	got = lr.Resolve(r, sess, user, company, true)
	assert.Equal(t, "en-US", got)
}

func TestLocaleResolver_NormalizesToAvailable(t *testing.T) {
	lr := NewLocaleResolver([]string{"en-US", "de-DE"})

	// A bare language matches the regional variant on offer.
	sess := session.New()
	sess.Set(session.KeyLocale, "de")
	got := lr.Resolve(localeRequest("/"), sess, nil, nil, false)
	assert.Equal(t, "de-DE", got)
}

func TestLocaleResolver_UnknownSourcesFallThrough(t *testing.T) {
	lr := NewLocaleResolver([]string{"en-US", "de-DE"})

	sess := session.New()
	sess.Set(session.KeyLocale, "!!")
	r := localeRequest("/")
	r.Header.Set("Accept-Language", ";;;")

	got := lr.Resolve(r, sess, nil, nil, false)
	assert.Equal(t, "en-US", got, "fallback is the first configured locale")
}

func TestNewLocaleResolver_EmptyAndInvalid(t *testing.T) {
	lr := NewLocaleResolver(nil)
	assert.Equal(t, "en-US", lr.Resolve(localeRequest("/"), session.New(), nil, nil, false))

	lr = NewLocaleResolver([]string{"???", "de-DE"})
	assert.Equal(t, "de-DE", lr.Resolve(localeRequest("/"), session.New(), nil, nil, false))
}

func TestLocaleResolver_Persist(t *testing.T) {
	lr := NewLocaleResolver([]string{"en-US", "de-DE"})
	sess := session.New()
	w := httptest.NewRecorder()

	lr.Persist(w, sess, "de-DE")

	assert.Equal(t, "de-DE", sess.Get(session.KeyLocale))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, GuestLanguageCookie, cookies[0].Name)
	assert.Equal(t, "de-DE", cookies[0].Value)
	assert.Positive(t, cookies[0].MaxAge)
}
