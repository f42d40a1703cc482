package models

const (
	SessionHeader    = "X-Session-ID"
	DefaultSessionID = "default"

	UploadedMessage = "PDF content processed and index created."
	ClearedMessage  = "PDF context cleared."
	NoIndexDetail   = "No PDF content indexed. Upload PDF content first."

	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// QAPromptTemplate is a Go template; the stuff chain fills .context with
	// the retrieved chunks.
	QAPromptTemplate = `
Answer the question as detailed as possible from the provided context. If the answer is not in
the provided context, just say "answer is not available in the context" and do not guess.

Context:
{{.context}}

Question:
{{.question}}

Answer:
`
)
