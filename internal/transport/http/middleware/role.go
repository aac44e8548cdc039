package httpmw

import "net/http"

// RequireTeacher gates moderation routes on the self-declared X-Role header.
// There is no authentication in this service; the role claim is trusted as
// stated, the same trust model the realtime side applies to join events.
func RequireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Role") != "teacher" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"teacher role required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
