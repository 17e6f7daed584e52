// Package metastore ведет журнал операций координатора.
// Журнал не является источником истины о содержимом файлов: им остаются каталоги узлов.
package metastore

import "time"

// Op тип операции
type Op string

const (
	OpPut Op = "put"
	OpGet Op = "get"
)

// Status итог операции
type Status string

const (
	StatusOK         Status = "ok"         // все отправки или все чанки успешны
	StatusPartial    Status = "partial"    // put: часть отправок не удалась
	StatusIncomplete Status = "incomplete" // get: не хватает чанков
	StatusFailed     Status = "failed"     // операция не выполнена
)

// Record содержит сведения об одной операции
type Record struct {
	ID          string    `json:"id"`          // UUIDv7, упорядочен по времени
	Op          Op        `json:"op"`          // put или get
	File        string    `json:"file"`        // базовое имя файла
	Size        int64     `json:"size"`        // размер файла в байтах
	ClusterSize int       `json:"clusterSize"` // число узлов на момент операции
	Chunks      int       `json:"chunks"`      // сколько чанков записано или получено
	Failed      []string  `json:"failed,omitempty"`
	Status      Status    `json:"status"`
	Time        time.Time `json:"time"`
}

// Journal интерфейс для хранения журнала операций
type Journal interface {
	// Append сохраняет запись, заполняя ID и Time, если они пусты
	Append(rec *Record) error

	// Get возвращает запись по идентификатору
	Get(id string) (*Record, error)

	// History возвращает записи по файлу, от старых к новым
	History(file string) ([]Record, error)

	// Recent возвращает до limit последних записей, от новых к старым
	Recent(limit int) ([]Record, error)

	// Close закрывает хранилище
	Close() error
}
