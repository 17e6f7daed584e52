// Package protocol описывает текстово-бинарный протокол между координатором и узлами хранения.
//
// Одно соединение обслуживает ровно один запрос:
//
//	list\n
//	put <name> <index> <length>\n<length байт>
//	get <name>\n
//
// На get узел отвечает последовательностью "CHUNK <index> <size>\n<size байт>",
// завершая ее строкой "END\n", либо одной строкой "FILE_NOT_FOUND\n".
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gammanik/dfs/internal/dfserr"
)

// Команды запросов
const (
	CmdList = "list"
	CmdPut  = "put"
	CmdGet  = "get"
)

// Служебные строки ответов
const (
	MarkerChunk    = "CHUNK"
	MarkerEnd      = "END"
	MarkerNotFound = "FILE_NOT_FOUND"
	AckOK          = "OK"
	AckError       = "ERROR"
)

const (
	// MaxLineLength ограничивает длину строки заголовка
	MaxLineLength = 4096

	DefaultResponseTimeout = 5 * time.Second
	DefaultPayloadTimeout  = 10 * time.Second
)

// Request разобранная строка запроса
type Request struct {
	Cmd   string
	Name  string
	Index int
	Size  int64
}

// Header сериализует запрос в строку заголовка, включая перевод строки
func (r Request) Header() string {
	switch r.Cmd {
	case CmdPut:
		return fmt.Sprintf("%s %s %d %d\n", CmdPut, r.Name, r.Index, r.Size)
	case CmdGet:
		return fmt.Sprintf("%s %s\n", CmdGet, r.Name)
	default:
		return CmdList + "\n"
	}
}

// ParseRequest разбирает строку запроса (без завершающего \n).
// Команда распознается без учета регистра.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, dfserr.Protocolf("parse request", "empty command")
	}

	cmd := strings.ToLower(fields[0])
	switch cmd {
	case CmdList:
		return Request{Cmd: CmdList}, nil

	case CmdGet:
		if len(fields) != 2 {
			return Request{}, dfserr.Protocolf("parse request", "get expects 1 argument, got %d", len(fields)-1)
		}
		if err := ValidateName(fields[1]); err != nil {
			return Request{}, err
		}
		return Request{Cmd: CmdGet, Name: fields[1]}, nil

	case CmdPut:
		if len(fields) != 4 {
			return Request{}, dfserr.Protocolf("parse request", "put expects 3 arguments, got %d", len(fields)-1)
		}
		if err := ValidateName(fields[1]); err != nil {
			return Request{}, err
		}
		index, err := strconv.Atoi(fields[2])
		if err != nil || index < 0 {
			return Request{}, dfserr.Protocolf("parse request", "invalid chunk index %q", fields[2])
		}
		size, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil || size < 0 {
			return Request{}, dfserr.Protocolf("parse request", "invalid chunk length %q", fields[3])
		}
		return Request{Cmd: CmdPut, Name: fields[1], Index: index, Size: size}, nil
	}

	return Request{}, dfserr.Protocolf("parse request", "unknown command %q", fields[0])
}

// ValidateName проверяет, что имя файла пригодно как часть имени файла на узле
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return dfserr.Protocolf("validate name", "invalid file name %q", name)
	}
	if strings.ContainsAny(name, "/\\\x00 \t\r\n") {
		return dfserr.Protocolf("validate name", "invalid file name %q", name)
	}
	return nil
}

// ReplyKind тип строки в ответе на get
type ReplyKind int

const (
	ReplyChunk ReplyKind = iota
	ReplyEnd
	ReplyNotFound
)

// ChunkHeader заголовок одного чанка в ответе на get
type ChunkHeader struct {
	Index int
	Size  int64
}

// String сериализует заголовок, включая перевод строки
func (h ChunkHeader) String() string {
	return fmt.Sprintf("%s %d %d\n", MarkerChunk, h.Index, h.Size)
}

// ParseReply разбирает строку ответа на get
func ParseReply(line string) (ReplyKind, ChunkHeader, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, ChunkHeader{}, dfserr.Protocolf("parse reply", "empty line")
	}

	switch fields[0] {
	case MarkerEnd:
		return ReplyEnd, ChunkHeader{}, nil
	case MarkerNotFound:
		return ReplyNotFound, ChunkHeader{}, nil
	case MarkerChunk:
		if len(fields) != 3 {
			return 0, ChunkHeader{}, dfserr.Protocolf("parse reply", "invalid chunk header %q", line)
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil || index < 0 {
			return 0, ChunkHeader{}, dfserr.Protocolf("parse reply", "invalid chunk index in %q", line)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || size < 0 {
			return 0, ChunkHeader{}, dfserr.Protocolf("parse reply", "invalid chunk size in %q", line)
		}
		return ReplyChunk, ChunkHeader{Index: index, Size: size}, nil
	}

	return 0, ChunkHeader{}, dfserr.Protocolf("parse reply", "unexpected line %q", line)
}

// ParseAck разбирает ответ узла на put в режиме подтверждений
func ParseAck(line string) error {
	switch {
	case line == AckOK:
		return nil
	case strings.HasPrefix(line, AckError):
		reason := strings.TrimSpace(strings.TrimPrefix(line, AckError))
		return dfserr.Protocolf("put ack", "node rejected chunk: %s", reason)
	}
	return dfserr.Protocolf("put ack", "unexpected ack %q", line)
}

// EntryName возвращает имя файла чанка на узле: <name>.<index>
func EntryName(name string, index int) string {
	return name + "." + strconv.Itoa(index)
}

// SplitEntry отделяет суффикс .<digits> от имени записи.
// Если суффикса нет, ok = false и name совпадает с entry.
func SplitEntry(entry string) (name string, index int, ok bool) {
	pos := strings.LastIndexByte(entry, '.')
	if pos < 0 || pos == len(entry)-1 {
		return entry, 0, false
	}
	suffix := entry[pos+1:]
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return entry, 0, false
		}
	}
	index, err := strconv.Atoi(suffix)
	if err != nil {
		return entry, 0, false
	}
	return entry[:pos], index, true
}
