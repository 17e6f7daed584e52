// Package node реализует узел хранения: каталог с чанками и обработку запросов протокола.
package node

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/protocol"
)

// ChunkFile описывает один файл чанка в каталоге узла
type ChunkFile struct {
	Name  string // имя исходного файла
	Index int    // индекс чанка
	Path  string // полный путь на диске
}

// Stats сводка по каталогу
type Stats struct {
	Chunks    int
	TotalSize int64
}

// Store хранит чанки в каталоге узла. Каждый чанк хранится в файле <name>.<index>.
type Store struct {
	dir string
}

// NewStore открывает каталог, создавая его при необходимости
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, dfserr.New(dfserr.ErrIO, "create storage directory", err)
	}
	return &Store{dir: dir}, nil
}

// Dir возвращает путь к каталогу
func (s *Store) Dir() string {
	return s.dir
}

// tempSuffix завершает имена временных файлов Put: .<entry>.*.tmp
const tempSuffix = ".tmp"

// isTemp отличает незавершенную запись от чанка. Имя чанка всегда оканчивается на .<digits>.
func isTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

// List возвращает имена всех файлов каталога, кроме временных
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, dfserr.New(dfserr.ErrIO, "read storage directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || isTemp(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Chunks находит все чанки файла name, отсортированные по индексу
func (s *Store) Chunks(name string) ([]ChunkFile, error) {
	if err := protocol.ValidateName(name); err != nil {
		return nil, err
	}

	names, err := s.List()
	if err != nil {
		return nil, err
	}

	var chunks []ChunkFile
	for _, entry := range names {
		base, index, ok := protocol.SplitEntry(entry)
		if !ok || base != name {
			continue
		}
		chunks = append(chunks, ChunkFile{
			Name:  base,
			Index: index,
			Path:  filepath.Join(s.dir, entry),
		})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// Open открывает чанк на чтение и возвращает его размер.
// Размер берется у открытого дескриптора, поэтому параллельная замена файла его не меняет.
func (s *Store) Open(c ChunkFile) (*os.File, int64, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, 0, dfserr.New(dfserr.ErrIO, "open chunk", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, dfserr.New(dfserr.ErrIO, "stat chunk", err)
	}
	return f, info.Size(), nil
}

// Put записывает ровно size байт из r как чанк index файла name.
// Данные пишутся во временный файл и переименовываются поверх прежней версии.
func (s *Store) Put(name string, index int, r io.Reader, size int64) error {
	if err := protocol.ValidateName(name); err != nil {
		return err
	}
	if index < 0 || size < 0 {
		return dfserr.Protocolf("put chunk", "invalid chunk %d of size %d", index, size)
	}

	entry := protocol.EntryName(name, index)
	chunkPath := filepath.Join(s.dir, entry)

	// Создаем временный файл рядом с целевым, чтобы rename был атомарным
	tmp, err := os.CreateTemp(s.dir, "."+entry+".*"+tempSuffix)
	if err != nil {
		return dfserr.New(dfserr.ErrIO, "create temp file", err)
	}
	tmpPath := tmp.Name()

	written, err := io.CopyN(tmp, r, size)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		var de *dfserr.Error
		if errors.As(err, &de) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return dfserr.New(dfserr.ErrConnection, "receive chunk", fmt.Errorf("got %d of %d bytes", written, size))
		}
		return dfserr.New(dfserr.ErrIO, "write chunk", err)
	}

	if err := os.Rename(tmpPath, chunkPath); err != nil {
		os.Remove(tmpPath)
		return dfserr.New(dfserr.ErrIO, "rename chunk", err)
	}
	return nil
}

// Stats подсчитывает чанки и их суммарный размер
func (s *Store) Stats() (Stats, error) {
	names, err := s.List()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, name := range names {
		if _, _, ok := protocol.SplitEntry(name); !ok {
			continue
		}
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		st.Chunks++
		st.TotalSize += info.Size()
	}
	return st, nil
}
