// Package chunker делит файл на фиксированное число частей и собирает его обратно.
package chunker

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Gammanik/dfs/internal/dfserr"
)

// Sizes возвращает размеры n чанков для файла длины length.
// Первые length%n чанков на байт длиннее остальных.
func Sizes(length int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := length / int64(n)
	extra := length % int64(n)

	sizes := make([]int64, n)
	for i := range sizes {
		sizes[i] = base
		if int64(i) < extra {
			sizes[i]++
		}
	}
	return sizes
}

// Split делит data на n чанков. Чанки ссылаются на исходный буфер.
// При len(data) < n часть чанков пустая.
func Split(data []byte, n int) [][]byte {
	sizes := Sizes(int64(len(data)), n)
	chunks := make([][]byte, len(sizes))

	var off int64
	for i, size := range sizes {
		chunks[i] = data[off : off+size : off+size]
		off += size
	}
	return chunks
}

// Set хранит полученные чанки одного файла по индексу
type Set struct {
	n     int
	parts map[int][]byte
}

// NewSet создает набор для файла из n чанков
func NewSet(n int) *Set {
	return &Set{n: n, parts: make(map[int][]byte, n)}
}

// Len возвращает число уже полученных чанков
func (s *Set) Len() int { return len(s.parts) }

// Has сообщает, получен ли чанк index
func (s *Set) Has(index int) bool {
	_, ok := s.parts[index]
	return ok
}

// Add сохраняет чанк. Первая копия побеждает: повтор и индекс вне [0, n) отбрасываются.
func (s *Set) Add(index int, data []byte) bool {
	if index < 0 || index >= s.n || s.Has(index) {
		return false
	}
	s.parts[index] = data
	return true
}

// Complete сообщает, получены ли все индексы
func (s *Set) Complete() bool {
	return len(s.parts) == s.n
}

// Missing возвращает недостающие индексы по возрастанию
func (s *Set) Missing() []int {
	var missing []int
	for i := 0; i < s.n; i++ {
		if !s.Has(i) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Size возвращает суммарный размер полученных чанков
func (s *Set) Size() int64 {
	var total int64
	for _, p := range s.parts {
		total += int64(len(p))
	}
	return total
}

// Reset освобождает буферы
func (s *Set) Reset() {
	s.parts = make(map[int][]byte, s.n)
}

// WriteTo пишет чанки в w строго по возрастанию индекса
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	if missing := s.Missing(); len(missing) > 0 {
		return 0, dfserr.New(dfserr.ErrIncompleteData, "reassemble", fmt.Errorf("missing chunks %v of %d", missing, s.n))
	}

	var written int64
	for i := 0; i < s.n; i++ {
		n, err := w.Write(s.parts[i])
		written += int64(n)
		if err != nil {
			return written, dfserr.New(dfserr.ErrIO, "reassemble", err)
		}
	}
	return written, nil
}

// Reassemble склеивает чанки в исходную последовательность байт
func Reassemble(s *Set) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(s.Size()))
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
