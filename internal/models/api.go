package models

// Request fields are pointers so that required rejects a missing field
// but lets an empty string through.
type UploadRequest struct {
	Text *string `json:"text" validate:"required"`
}

type UploadResponse struct {
	Message string `json:"message"`
}

type AskRequest struct {
	Question *string `json:"question" validate:"required"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type ClearResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
