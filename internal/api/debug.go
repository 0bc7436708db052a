package api

import (
	"net/http"
	"time"

	"shiprelay/internal/buildinfo"
)

// DebugJSON reports build info and a redacted view of the effective config.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":              s.Cfg.Port,
			"authMode":          s.Cfg.AuthMode,
			"shopifyApiVersion": s.Cfg.ShopifyAPIVersion,
			"retentionAge":      s.Cfg.RetentionAge.String(),
			"retentionInterval": s.Cfg.RetentionInterval.String(),
			"hasDatabaseUrl":    s.Cfg.DatabaseURL != "",
			"hasRedisUrl":       s.Cfg.RedisURL != "",
			"hasWebhookSecret":  s.Cfg.ShopifyWebhookSecret != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
