package inbound

import (
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type ackBody struct {
	Status  string `json:"status"`
	Deduped bool   `json:"deduped,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewHTTPHandler exposes the dispatcher at paths of the form
// <prefix>/{platform}. The query string is forwarded untouched so
// signature verification sees the exact bytes the network sent.
func NewHTTPHandler(dispatcher *Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeAck(w, http.StatusMethodNotAllowed, ackBody{
				Status:  "rejected",
				Message: "callbacks must be delivered as GET requests",
			})
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), Request{
			Platform: platformFromPath(r.URL.Path),
			RawQuery: r.URL.RawQuery,
		})
		if err != nil {
			body := ackBody{Status: "rejected"}
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				body.Code = richErr.TextCode
				body.Message = richErr.Message
			}
			writeAck(w, result.StatusCode, body)
			return
		}

		writeAck(w, result.StatusCode, ackBody{
			Status:  "ok",
			Deduped: result.Deduped,
		})
	})
}

func platformFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}

func writeAck(w http.ResponseWriter, status int, body ackBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
