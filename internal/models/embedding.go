package models

// Document is one record produced by a loader: a PDF page, a text file, a sheet.
type Document struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
	ChunkID    int    `json:"chunk_id"`
	UploadID   string `json:"upload_id"`
}

type ChunkEmbedding struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// Source is a chunk returned by similarity search.
type Source struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number"`
	UploadID   string  `json:"upload_id,omitempty"`
	Similarity float32 `json:"similarity"`
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
	Sources []Source
}

// Upload is a loaded file before chunking.
type Upload struct {
	ID        string
	Name      string
	Size      int
	Documents []Document
}

type IngestResult struct {
	UploadID       string
	Name           string
	Documents      []Document
	Chunks         int
	CollectionSize int
}

type Evaluation struct {
	Question string
	Answer   string
	Verdict  string
	Sources  []Source
}
