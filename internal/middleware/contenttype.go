package middleware

import (
	"mime"
	"net/http"

	"github.com/verveo/todo-generator/internal/apperr"
)

// ContentType requires a JSON body on POST and PUT requests that carry one
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				apperr.Write(w, apperr.New(apperr.RequestInvalid).WithDescription("Content-Type header is required"))
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				e := apperr.New(apperr.RequestInvalid).WithDescription("Content-Type must be application/json")
				e.Status = http.StatusUnsupportedMediaType
				apperr.Write(w, e)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
