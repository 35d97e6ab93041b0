package models

// FileRecord is the durable description of an uploaded file.
type FileRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"-"`
	Size       int64  `json:"size"`
	UploadedAt int64  `json:"uploaded_at"` // unix seconds
}

// FileResponse is the public view of a FileRecord returned by the API.
type FileResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	UploadedAt int64  `json:"uploaded_at"`
}

// Response converts the record to its public view.
func (r FileRecord) Response() FileResponse {
	return FileResponse{
		ID:         r.ID,
		Name:       r.Name,
		Size:       r.Size,
		UploadedAt: r.UploadedAt,
	}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
