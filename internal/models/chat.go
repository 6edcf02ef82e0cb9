package models

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserMessage     string `json:"user_message" validate:"required"`
	KnowledgeDomain string `json:"knowledge_domain" validate:"required,domain"`
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// DomainInfo describes one persisted knowledge index.
type DomainInfo struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
	Chunks         int    `json:"chunks"`
	Source         string `json:"source,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	// Set from the ingestion ledger when one is configured.
	LastIngestionID string `json:"last_ingestion_id,omitempty"`
	LastIngestedAt  string `json:"last_ingested_at,omitempty"`
}
