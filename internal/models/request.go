package models

type SetModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type AskRequest struct {
	Query string `json:"query" binding:"required"`
}

type SubmitAnswersRequest struct {
	Answers []string `json:"answers" binding:"required"`
}
