package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/iasistente/internal/models"
)

const maxDimensions = 1 << 16

// maxIDLen bounds the chunk ID length read back from disk.
const maxIDLen = 4096

// FlatIndex is an exact, brute-force inner product index. Each vector is paired with the
// chunk it was computed from, so a search returns text ready for a prompt.
type FlatIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	chunks     map[string]models.Chunk
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		chunks:     make(map[string]models.Chunk),
	}, nil
}

// Add appends chunks with their vectors.
func (f *FlatIndex) Add(_ context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ch := range chunks {
		if len(vectors[i]) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), f.dimensions)
		}
		if _, dup := f.chunks[ch.ID]; dup {
			return fmt.Errorf("duplicate chunk id %q", ch.ID)
		}
		vec := make([]float32, f.dimensions)
		copy(vec, vectors[i])
		f.ids = append(f.ids, ch.ID)
		f.vectors = append(f.vectors, vec)
		f.chunks[ch.ID] = ch
	}
	return nil
}

// Search returns up to k chunks ordered by descending score. Ties keep insertion order.
func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.ids) == 0 {
		return nil, nil
	}
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(f.ids))
	for i, vec := range f.vectors {
		scores[i] = scored{pos: i, score: InnerProduct(query, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	k = min(k, len(scores))
	hits := make([]Hit, k)
	for i := range k {
		hits[i] = Hit{Chunk: f.chunks[f.ids[scores[i].pos]], Score: scores[i].score}
	}
	return hits, nil
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

// Save writes index.vec and docstore.json into dir, creating it if needed.
//
// index.vec format: dimension (4), n (4), then per vector: idLen (4), id bytes,
// vector (dimension*4 bytes), all little endian.
func (f *FlatIndex) Save(dir string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := f.writeVectors(filepath.Join(dir, VectorsFile)); err != nil {
		return err
	}
	docs := make([]models.Chunk, len(f.ids))
	for i, id := range f.ids {
		docs[i] = f.chunks[id]
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode docstore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DocstoreFile), data, 0644); err != nil {
		return fmt.Errorf("write docstore: %w", err)
	}
	return nil
}

func (f *FlatIndex) writeVectors(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err := binary.Write(w, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(f.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range f.ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := w.WriteString(id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(f.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return file.Close()
}

// Load reads an index saved by Save from dir. Every vector must have a docstore entry.
// A missing index.vec is reported with an error wrapping fs.ErrNotExist.
func Load(dir string) (*FlatIndex, error) {
	file, err := os.Open(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	r := bufio.NewReader(file)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if dim > maxDimensions {
		return nil, fmt.Errorf("implausible dimensions %d", dim)
	}
	idx, err := NewFlatIndex(int(dim))
	if err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}

	chunks, err := readDocstore(filepath.Join(dir, DocstoreFile))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("read id len: %w", err)
		}
		if idLen > maxIDLen {
			return nil, fmt.Errorf("implausible id length %d", idLen)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		id := string(idBytes)
		ch, ok := chunks[id]
		if !ok {
			return nil, fmt.Errorf("docstore has no chunk %q", id)
		}
		idx.ids = append(idx.ids, id)
		idx.vectors = append(idx.vectors, bytesToFloat32Slice(buf))
		idx.chunks[id] = ch
	}
	return idx, nil
}

func readDocstore(path string) (map[string]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docstore: %w", err)
	}
	var docs []models.Chunk
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode docstore: %w", err)
	}
	out := make(map[string]models.Chunk, len(docs))
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
