package models

type SourceResponse struct {
	Preview    string  `json:"preview"`
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number,omitempty"`
	Similarity float32 `json:"similarity"`
}

type UploadResponse struct {
	Message        string `json:"message"`
	UploadID       string `json:"upload_id"`
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	CollectionSize int    `json:"collection_size"`
}

type AskResponse struct {
	Query      string           `json:"query"`
	Answer     string           `json:"answer"`
	AnswerHTML string           `json:"answer_html"`
	Sources    []SourceResponse `json:"sources"`
}

type QuizResponse struct {
	Questions []string `json:"questions"`
}

type EvaluationResponse struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	Verdict     string           `json:"verdict"`
	VerdictHTML string           `json:"verdict_html"`
	Sources     []SourceResponse `json:"sources,omitempty"`
}

type SubmitAnswersResponse struct {
	Evaluations []EvaluationResponse `json:"evaluations"`
}

type SessionResponse struct {
	SessionID string   `json:"session_id"`
	Phase     string   `json:"phase"`
	Mode      string   `json:"mode,omitempty"`
	UploadID  string   `json:"upload_id,omitempty"`
	FileName  string   `json:"file_name,omitempty"`
	Documents int      `json:"documents"`
	Questions []string `json:"questions,omitempty"`
	Exchanges int      `json:"exchanges"`
}

type IndexResponse struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}
