// Package vector provides the flat vector index that backs each knowledge domain.
package vector

import "github.com/hyperjump/iasistente/internal/models"

// File names inside an index directory.
const (
	VectorsFile  = "index.vec"
	DocstoreFile = "docstore.json"
)

// Hit is a single similarity search result.
type Hit struct {
	Chunk models.Chunk
	Score float64 // inner product; cosine similarity for normalized vectors
}
