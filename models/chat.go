package models

// ChatRequest is the body of POST /api/chat. SearchWeb defaults to true when
// omitted, which is why it is a pointer.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SearchWeb *bool  `json:"search_web"`
	Stream    bool   `json:"stream"`
}

// WantsWebSearch resolves the search_web default.
func (r *ChatRequest) WantsWebSearch() bool {
	if r.SearchWeb == nil {
		return true
	}
	return *r.SearchWeb
}

// UploadResponse is returned after a successful upload request. For async
// processing Status is "processing" and ChunkCount/Pages arrive later.
type UploadResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Pages      int    `json:"pages,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Message    string `json:"message"`
}
