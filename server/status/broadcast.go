package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andydunstall/rumor/pkg/broadcast"
)

// Generation is the response for the generation route.
type Generation struct {
	Generation uint64 `json:"generation"`
}

// Topology is the response for the topology route.
type Topology struct {
	NodeID     string   `json:"node_id"`
	Neighbours []string `json:"neighbours"`
}

// Broadcast exposes the state of the broadcast engine.
type Broadcast struct {
	engine *broadcast.Engine
}

func NewBroadcast(engine *broadcast.Engine) *Broadcast {
	return &Broadcast{
		engine: engine,
	}
}

func (s *Broadcast) Register(group *gin.RouterGroup) {
	group.GET("/values", s.valuesRoute)
	group.GET("/cursors", s.cursorsRoute)
	group.GET("/topology", s.topologyRoute)
	group.GET("/generation", s.generationRoute)
}

func (s *Broadcast) valuesRoute(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Read())
}

// cursorsRoute returns the number of values each neighbour has acknowledged.
func (s *Broadcast) cursorsRoute(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Watermarks())
}

func (s *Broadcast) topologyRoute(c *gin.Context) {
	c.JSON(http.StatusOK, &Topology{
		NodeID:     s.engine.NodeID(),
		Neighbours: s.engine.Neighbours(),
	})
}

func (s *Broadcast) generationRoute(c *gin.Context) {
	c.JSON(http.StatusOK, &Generation{
		Generation: s.engine.Generation(),
	})
}

var _ Handler = &Broadcast{}
