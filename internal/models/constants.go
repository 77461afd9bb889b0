package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n\n"
	UnsupportedMsg   = "Unsupported file format."

	MetaSource     = "source"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
	MetaUploadID   = "upload_id"
)

var (
	// QAPromptTemplate is the "stuff" prompt: every retrieved chunk goes into one prompt.
	QAPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

	QuizPromptTemplate = `Based on the following document, generate {{.count}} logic-based or comprehension-focused questions:
{{.context}}

Format the output as:
{{.format}}
`

	EvaluationPromptTemplate = `Question: {{.question}}
User's Answer: {{.answer}}

Evaluate the answer based on the document content. Be fair and objective.
Justify your evaluation with a reference to the source text.
`
)
