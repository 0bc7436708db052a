package api

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// Webhook envelope: senders only ever see {success, message|error}.

func writeWebhookOK(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeWebhookErr(w http.ResponseWriter, status int, errMsg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": errMsg})
}
