package middleware

import (
	"net/http"
	"strings"
)

// corsExposedHeaders はフロントエンドが読む応答ヘッダー。
// ワークスペースURL、PDFのファイル名、ページ数、429の待ち時間。
var corsExposedHeaders = []string{"Location", "Content-Disposition", "X-Page-Count", "Retry-After"}

// NewCORSMiddleware はallowedOriginだけを許可するCORSミドルウェアを返す。
// ワークスペースCookieを送らせるためワイルドカードは使わない。
// プリフライトには後段を呼ばず204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	fixed := map[string]string{
		"Access-Control-Allow-Origin":      allowedOrigin,
		"Access-Control-Allow-Methods":     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		"Access-Control-Allow-Headers":     "Content-Type",
		"Access-Control-Expose-Headers":    strings.Join(corsExposedHeaders, ", "),
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Max-Age":           "86400",
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range fixed {
				h.Set(k, v)
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
