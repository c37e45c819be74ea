package gen

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(NewNode))

// NewNode builds the process-wide snowflake ID generator. The node id comes
// from SNOWFLAKE_NODE_ID so replicas never collide; single-instance deploys
// can leave it unset.
func NewNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = v
	}
	return snowflake.NewNode(nodeID)
}
