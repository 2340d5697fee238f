package httpdto

// UploadResponse is returned by POST /v1/uploads
type UploadResponse struct {
	URL string `json:"url"`
}
