package services

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// IdentifierSource hands out order and tracking numbers. Values only need
// to be unique with high probability; the store has the final say.
type IdentifierSource interface {
	Next() (orderNumber, trackingNumber string)
}

// SnowflakeIdentifiers prefixes a time-ordered snowflake id with a short
// random suffix, e.g. ORDER-1786134290372460544-9F2C41AB.
type SnowflakeIdentifiers struct {
	node *snowflake.Node
}

// NewSnowflakeIdentifiers creates a source for the given node id (0-1023).
func NewSnowflakeIdentifiers(nodeID int64) (*SnowflakeIdentifiers, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &SnowflakeIdentifiers{node: node}, nil
}

func (s *SnowflakeIdentifiers) Next() (string, string) {
	return "ORDER-" + s.node.Generate().String() + "-" + randomSuffix(),
		"TRACK-" + s.node.Generate().String() + "-" + randomSuffix()
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
