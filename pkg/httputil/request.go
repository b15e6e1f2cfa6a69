package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParamInt64 reads an int64 request parameter from the query string or form
// body, returning the default when absent or malformed. Portal request
// parameters are tolerant of garbage; a bad value behaves like an absent one.
func ParamInt64(r *http.Request, key string, defaultVal int64) int64 {
	str := param(r, key)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return defaultVal
	}
	return val
}

// ParamBool reads a boolean request parameter, returning the default when
// absent or malformed.
func ParamBool(r *http.Request, key string, defaultVal bool) bool {
	str := param(r, key)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return defaultVal
	}
	return val
}

// ParamString reads a string request parameter, returning the default when
// absent.
func ParamString(r *http.Request, key string, defaultVal string) string {
	if str := param(r, key); str != "" {
		return str
	}
	return defaultVal
}

// HasParam reports whether the parameter was supplied at all, regardless of
// whether its value parses.
func HasParam(r *http.Request, key string) bool {
	return param(r, key) != ""
}

func param(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	if r.Form != nil {
		return r.Form.Get(key)
	}
	return ""
}

// CookieValue returns the named cookie's value, or empty when unset.
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
