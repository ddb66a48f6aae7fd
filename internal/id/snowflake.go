package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered request id. Node 0 is used when Init was never called.
func New() string {
	once.Do(func() {
		node, _ = snowflake.NewNode(0)
	})
	if node == nil {
		return ""
	}
	return node.Generate().Base58()
}
