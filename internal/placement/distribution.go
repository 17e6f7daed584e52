// Package placement отображает имя файла на узлы кластера.
package placement

import "fmt"

// Target описывает, куда записывается один чанк файла
type Target struct {
	Chunk   int // индекс чанка
	Primary int // индекс основного узла
	Replica int // индекс узла с репликой
}

// PrimaryIndex возвращает индекс узла, с которого начинается раскладка файла
func PrimaryIndex(baseName string, clusterSize int) int {
	if clusterSize <= 0 {
		return 0
	}
	return int(NameHash(baseName) % uint32(clusterSize))
}

// ChunkNode возвращает основной узел для чанка j
func ChunkNode(primary, j, clusterSize int) int {
	if clusterSize <= 0 {
		return 0
	}
	return (primary + j) % clusterSize
}

// ReplicaNode возвращает узел-преемник, на который кладется вторая копия.
// При clusterSize = 1 это тот же узел.
func ReplicaNode(node, clusterSize int) int {
	if clusterSize <= 0 {
		return 0
	}
	return (node + 1) % clusterSize
}

// Plan строит раскладку всех clusterSize чанков файла
func Plan(baseName string, clusterSize int) ([]Target, error) {
	if clusterSize <= 0 {
		return nil, fmt.Errorf("invalid cluster size %d", clusterSize)
	}

	primary := PrimaryIndex(baseName, clusterSize)
	targets := make([]Target, 0, clusterSize)
	for j := 0; j < clusterSize; j++ {
		node := ChunkNode(primary, j, clusterSize)
		targets = append(targets, Target{
			Chunk:   j,
			Primary: node,
			Replica: ReplicaNode(node, clusterSize),
		})
	}

	return targets, nil
}
