package rag

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// storeFormatVersion is written at the start of every store file.
const storeFormatVersion uint32 = 1

// maxFieldLen bounds a single string or vector read from disk so a
// corrupt file cannot trigger a huge allocation.
const maxFieldLen = 64 << 20

// ErrStoreFormat is returned when a store file was written by an
// incompatible version.
var ErrStoreFormat = errors.New("unsupported vector store format")

// Document is a single chunk in the vector store.
type Document struct {
	// Text is the chunk content.
	Text string
	// Chunk is the chunk's position in the page.
	Chunk int
	// Vector is the chunk embedding.
	Vector []float32
}

// SearchResult is a document matched by similarity search, with its score.
type SearchResult struct {
	Doc   Document
	Score float32 // Cosine similarity: 1.0 = identical, 0.0 = unrelated.
}

// Store is an in-memory vector store that can be written to and read from
// a binary file. A page has a few hundred chunks at most, so search is a
// linear scan.
type Store struct {
	docs []Document
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add inserts a document into the store.
func (s *Store) Add(doc Document) {
	s.docs = append(s.docs, doc)
}

// Len returns the number of documents in the store.
func (s *Store) Len() int {
	return len(s.docs)
}

// Save writes all documents to path in a compact binary format.
//
// Binary format v1 (all little-endian):
//
//	[4 bytes] format version (uint32)
//	[4 bytes] number of documents (uint32)
//	For each document:
//	  [4 bytes] text length (uint32)
//	  [N bytes] text (UTF-8)
//	  [4 bytes] chunk index (uint32)
//	  [4 bytes] vector dimension (uint32)
//	  [dim*4 bytes] vector (float32 array)
//
// The file is written to a temporary name and renamed into place.
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".store-*")
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := s.write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write vector store: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, storeFormatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s.docs))); err != nil {
		return err
	}
	for _, doc := range s.docs {
		if err := writeDoc(w, doc); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the store contents with the documents saved at path.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("failed to read store header: %w", err)
	}
	if version != storeFormatVersion {
		return fmt.Errorf("%w: version %d", ErrStoreFormat, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("failed to read document count: %w", err)
	}

	docs := make([]Document, 0, min(count, 4096))
	for i := uint32(0); i < count; i++ {
		doc, err := readDoc(r)
		if err != nil {
			return fmt.Errorf("failed to read document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	s.docs = docs
	return nil
}

// Search returns the topK documents most similar to queryVec, highest
// score first. topK <= 0 returns every document.
func (s *Store) Search(queryVec []float32, topK int) []SearchResult {
	results := make([]SearchResult, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, SearchResult{Doc: doc, Score: cosineSimilarity(queryVec, doc.Vector)})
	}

	// Stable so equal scores keep page order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Vectors of different length, empty vectors and zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(magA) * math.Sqrt(magB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeDoc(w io.Writer, doc Document) error {
	if err := writeString(w, doc.Text); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(doc.Chunk)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(doc.Vector))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, doc.Vector)
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > maxFieldLen {
		return "", fmt.Errorf("string length %d exceeds limit", length)
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readDoc(r io.Reader) (Document, error) {
	text, err := readString(r)
	if err != nil {
		return Document{}, err
	}

	var chunk, dim uint32
	if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
		return Document{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return Document{}, err
	}
	if dim > maxFieldLen/4 {
		return Document{}, fmt.Errorf("vector dimension %d exceeds limit", dim)
	}
	vec := make([]float32, dim)
	if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
		return Document{}, err
	}
	return Document{Text: text, Chunk: int(chunk), Vector: vec}, nil
}
