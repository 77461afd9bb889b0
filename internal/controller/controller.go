package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"research-assistant/internal/helper"
	"research-assistant/internal/models"
	"research-assistant/internal/parser"
	"research-assistant/internal/quiz"
	"research-assistant/internal/rag"
	"research-assistant/internal/session"
	"research-assistant/internal/vectorstore"
)

// Controller serves the session and index endpoints.
type Controller struct {
	sessions     *session.Manager
	store        vectorstore.Store
	collection   string
	previewChars int
}

func NewController(sessions *session.Manager, store vectorstore.Store, collection string, previewChars int) *Controller {
	return &Controller{
		sessions:     sessions,
		store:        store,
		collection:   collection,
		previewChars: previewChars,
	}
}

func (c *Controller) CreateSession(ctx *gin.Context) {
	s, err := c.sessions.Create()
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, sessionResponse(s.Snapshot()))
}

func (c *Controller) GetSession(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, sessionResponse(s.Snapshot()))
}

func (c *Controller) DeleteSession(ctx *gin.Context) {
	if err := c.sessions.Delete(ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Upload takes a multipart "file" field and indexes it for the session.
func (c *Controller) Upload(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(ctx, err)
		return
	}
	defer f.Close()

	res, err := s.Upload(ctx.Request.Context(), fh.Filename, f)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, models.UploadResponse{
		Message:        "File uploaded successfully!",
		UploadID:       res.UploadID,
		Documents:      len(res.Documents),
		Chunks:         res.Chunks,
		CollectionSize: res.CollectionSize,
	})
}

func (c *Controller) SetMode(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var req models.SetModeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := s.SetMode(session.Mode(req.Mode)); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sessionResponse(s.Snapshot()))
}

func (c *Controller) Ask(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := s.Ask(ctx.Request.Context(), req.Query)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.AskResponse{
		Query:      resp.Query,
		Answer:     resp.Content,
		AnswerHTML: renderHTML(resp.Content),
		Sources:    c.sourceResponses(resp.Sources),
	})
}

func (c *Controller) GenerateQuiz(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	questions, err := s.GenerateQuiz(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.QuizResponse{Questions: questions})
}

func (c *Controller) SubmitAnswers(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var req models.SubmitAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	evals, err := s.SubmitAnswers(ctx.Request.Context(), req.Answers)
	if err != nil {
		respondError(ctx, err)
		return
	}
	out := make([]models.EvaluationResponse, len(evals))
	for i, e := range evals {
		out[i] = models.EvaluationResponse{
			Question:    e.Question,
			Answer:      e.Answer,
			Verdict:     e.Verdict,
			VerdictHTML: renderHTML(e.Verdict),
			Sources:     c.sourceResponses(e.Sources),
		}
	}
	ctx.JSON(http.StatusOK, models.SubmitAnswersResponse{Evaluations: out})
}

func (c *Controller) IndexStats(ctx *gin.Context) {
	count, err := c.store.Count(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.IndexResponse{Collection: c.collection, Count: count})
}

func (c *Controller) ClearIndex(ctx *gin.Context) {
	if err := c.store.Clear(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	log.Info().Str("collection", c.collection).Msg("Cleared index")
	ctx.Status(http.StatusNoContent)
}

func (c *Controller) DeleteUpload(ctx *gin.Context) {
	if err := c.store.DeleteUpload(ctx.Request.Context(), ctx.Param("upload_id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (c *Controller) session(ctx *gin.Context) (*session.Session, bool) {
	s, err := c.sessions.Get(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return nil, false
	}
	return s, true
}

func (c *Controller) sourceResponses(sources []models.Source) []models.SourceResponse {
	out := make([]models.SourceResponse, len(sources))
	for i, s := range sources {
		out[i] = models.SourceResponse{
			Preview:    helper.Preview(s.Content, c.previewChars),
			Source:     s.Source,
			PageNumber: s.PageNumber,
			Similarity: s.Similarity,
		}
	}
	return out
}

func renderHTML(text string) string {
	html, err := helper.RenderMarkdown(text)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to render markdown")
		return ""
	}
	return html
}

func respondError(ctx *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if errors.Is(err, parser.ErrUnsupportedFormat) {
		msg = models.UnsupportedMsg
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Request failed")
	}
	ctx.JSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrWrongMode),
		errors.Is(err, session.ErrNoQuiz):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownMode), errors.Is(err, rag.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, vectorstore.ErrEmptyCollection), errors.Is(err, quiz.ErrNoQuestions):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func sessionResponse(st session.State) models.SessionResponse {
	resp := models.SessionResponse{
		SessionID: st.ID,
		Phase:     string(st.Phase),
		Mode:      string(st.Mode),
		Questions: st.Questions,
		Exchanges: st.Exchanges,
	}
	if st.Upload != nil {
		resp.UploadID = st.Upload.UploadID
		resp.FileName = st.Upload.Name
		resp.Documents = len(st.Upload.Documents)
	}
	return resp
}
