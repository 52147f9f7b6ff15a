package i18n

import "net/http"

// Middleware injects a localizer into every request context. The language is
// taken from the "lang" query parameter, then Accept-Language, then the
// bundle default.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
		ctx := Context(r.Context(), lang)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
