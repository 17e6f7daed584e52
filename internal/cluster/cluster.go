// Package cluster читает список узлов кластера из конфигурационного файла.
//
// Поддерживаются строки вида
//
//	server dfs1 127.0.0.1:10001
//	127.0.0.1:10002
//
// Порядок строк задает индексы узлов и должен быть одинаковым у всех клиентов.
package cluster

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultMaxNodes задает, сколько узлов читается из файла по умолчанию
const DefaultMaxNodes = 4

// Node адрес узла хранения
type Node struct {
	Name string
	Host string
	Port int
}

// Addr возвращает host:port
func (n Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (n Node) String() string {
	if n.Name != "" {
		return n.Name + "(" + n.Addr() + ")"
	}
	return n.Addr()
}

// Load читает файл конфигурации
func Load(path string, maxNodes int) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, maxNodes)
}

// Parse читает узлы из r, сохраняя порядок.
// Строки сверх maxNodes пропускаются с предупреждением; maxNodes <= 0 снимает ограничение.
func Parse(r io.Reader, maxNodes int) ([]Node, error) {
	var nodes []Node
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		node, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if maxNodes > 0 && len(nodes) >= maxNodes {
			log.Warn().Int("max", maxNodes).Str("node", node.Addr()).Msg("too many servers in config, ignoring")
			continue
		}
		nodes = append(nodes, node)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no servers configured")
	}
	return nodes, nil
}

func parseLine(line string) (Node, error) {
	fields := strings.Fields(line)

	var name, endpoint string
	switch {
	case fields[0] == "server" && len(fields) == 3:
		name, endpoint = fields[1], fields[2]
	case fields[0] == "server":
		return Node{}, fmt.Errorf("invalid server entry %q", line)
	case len(fields) == 1:
		endpoint = fields[0]
	default:
		return Node{}, fmt.Errorf("invalid server entry %q", line)
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return Node{}, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Node{}, fmt.Errorf("invalid port in %q", endpoint)
	}
	if host == "" {
		host = "127.0.0.1"
	}

	return Node{Name: name, Host: host, Port: port}, nil
}
