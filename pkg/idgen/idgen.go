package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out time-ordered snowflake ids. Each running process must
// use a distinct node id (0-1023).
type Generator struct {
	node *snowflake.Node
}

func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// NextID returns a new unique int64 id.
func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}

// NextCode returns a new unique id rendered in base36, used for human-facing
// references such as QC batch numbers.
func (g *Generator) NextCode() string {
	return g.node.Generate().Base36()
}
