package gen

import (
	"legion-prm/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen",
	fx.Provide(NewSnowflakeNode),
)

type SnowflakeNode struct {
	node *snowflake.Node
}

// NewSnowflakeNode returns an ID generator for the node configured in
// SNOWFLAKE.NODE. Hosts sharing a redis session store should use distinct nodes.
func NewSnowflakeNode(cfg *config.Config) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, err
	}
	return &SnowflakeNode{node: node}, nil
}

func (s *SnowflakeNode) GenerateID() snowflake.ID {
	return s.node.Generate()
}

// RequestID returns a fresh ID in its base36 form for X-Request-ID headers.
func (s *SnowflakeNode) RequestID() string {
	return s.node.Generate().Base36()
}
