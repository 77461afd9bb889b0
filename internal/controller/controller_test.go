package controller

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-assistant/internal/chromemdb"
	"research-assistant/internal/config"
	"research-assistant/internal/embedding"
	"research-assistant/internal/models"
	"research-assistant/internal/quiz"
	"research-assistant/internal/rag"
	"research-assistant/internal/session"
	"research-assistant/internal/testutil"
)

const paper = `Photosynthesis converts light energy into chemical energy.

Chlorophyll absorbs **red** and blue light.`

func newTestRouter(t *testing.T, responses ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	emb := &testutil.FakeEmbedder{}
	store, err := chromemdb.NewVectorDBManager(t.TempDir(), "test", true, false, "", embedding.EmbeddingFunc(emb))
	require.NoError(t, err)
	gen := &testutil.FakeGenerator{Responses: responses}
	r := rag.NewRAG(store, emb, gen, cfg)
	manager := session.NewManager(r, quiz.New(gen, r, cfg.Quiz))
	return NewRouter(NewController(manager, store, "test", cfg.RAG.SourcePreviewChars))
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, router *gin.Engine, sessionID, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "empty", resp.Phase)
	return resp.SessionID
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestUnknownSession(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadUnsupported(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	w := upload(t, router, id, "notes.md", "# hi")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.JSONEq(t, `{"error":"Unsupported file format."}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Contains(t, w.Body.String(), `"phase":"empty"`)
}

func TestAskBeforeUpload(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/ask", models.AskRequest{Query: "what?"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAskFlow(t *testing.T) {
	router := newTestRouter(t, "It absorbs **red** and blue light.")
	id := createSession(t, router)

	w := upload(t, router, id, "paper.txt", paper)
	require.Equal(t, http.StatusCreated, w.Code)
	var up models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.Equal(t, 1, up.Documents)
	assert.Equal(t, 1, up.Chunks)
	assert.Equal(t, 1, up.CollectionSize)
	assert.Len(t, up.UploadID, 16)

	w = do(t, router, http.MethodPut, "/api/v1/sessions/"+id+"/mode", models.SetModeRequest{Mode: "ask"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/ask", models.AskRequest{Query: "What light does chlorophyll absorb?"})
	require.Equal(t, http.StatusOK, w.Code)
	var ask models.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ask))
	assert.Equal(t, "It absorbs **red** and blue light.", ask.Answer)
	assert.Equal(t, "<p>It absorbs <strong>red</strong> and blue light.</p>", ask.AnswerHTML)
	require.Len(t, ask.Sources, 1)
	assert.Equal(t, "paper.txt", ask.Sources[0].Source)
	assert.True(t, strings.HasSuffix(ask.Sources[0].Preview, "..."))
	assert.True(t, strings.HasPrefix(ask.Sources[0].Preview, "Photosynthesis"))
}

func TestChallengeFlow(t *testing.T) {
	router := newTestRouter(t, "1. What does photosynthesis convert?\n2. What absorbs light?\n3. Which colours?", "Correct.")
	id := createSession(t, router)
	require.Equal(t, http.StatusCreated, upload(t, router, id, "paper.txt", paper).Code)

	w := do(t, router, http.MethodPut, "/api/v1/sessions/"+id+"/mode", models.SetModeRequest{Mode: "challenge"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/answers", models.SubmitAnswersRequest{Answers: []string{"a"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/quiz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var q models.QuizResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, []string{"What does photosynthesis convert?", "What absorbs light?", "Which colours?"}, q.Questions)

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/answers", models.SubmitAnswersRequest{
		Answers: []string{"light to chemical energy", "chlorophyll", "red and blue"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res models.SubmitAnswersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Evaluations, 3)
	assert.Equal(t, "Correct.", res.Evaluations[0].Verdict)
	assert.Equal(t, "chlorophyll", res.Evaluations[1].Answer)
}

func TestSetModeInvalid(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)
	require.Equal(t, http.StatusCreated, upload(t, router, id, "paper.txt", paper).Code)

	w := do(t, router, http.MethodPut, "/api/v1/sessions/"+id+"/mode", models.SetModeRequest{Mode: "debate"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/api/v1/sessions/"+id+"/mode", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexEndpoints(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	w := upload(t, router, id, "paper.txt", paper)
	require.Equal(t, http.StatusCreated, w.Code)
	var up models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	require.Equal(t, http.StatusCreated, upload(t, router, id, "other.txt", "Cellular respiration releases energy.").Code)

	w = do(t, router, http.MethodGet, "/api/v1/index", nil)
	assert.JSONEq(t, `{"collection":"test","count":2}`, w.Body.String())

	w = do(t, router, http.MethodDelete, "/api/v1/index/uploads/"+up.UploadID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/index", nil)
	assert.JSONEq(t, `{"collection":"test","count":1}`, w.Body.String())

	w = do(t, router, http.MethodDelete, "/api/v1/index", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/index", nil)
	assert.JSONEq(t, `{"collection":"test","count":0}`, w.Body.String())
}

func TestDeleteSession(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/v1/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/v1/sessions/"+id, nil).Code)
}
