package llm

// HistoryResponse is returned by GET /api/history.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// OKResponse acknowledges session deletion and aborts.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"` // Seconds since the server started
	Model     string  `json:"model"`
	HasAPIKey bool    `json:"hasApiKey"`
}

// SessionsResponse is returned by GET /api/sessions.
type SessionsResponse struct {
	Sessions []SessionMeta `json:"sessions"`
}
