package placement

import (
	"crypto/md5"
	"encoding/binary"
)

// NameHash вычисляет 32-битный хеш имени файла:
// первые 4 байта MD5, прочитанные как little-endian uint32
func NameHash(baseName string) uint32 {
	digest := md5.Sum([]byte(baseName))
	return binary.LittleEndian.Uint32(digest[:4])
}
