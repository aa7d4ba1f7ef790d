package spectate

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/brensch/bandits/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RouterOption func(*routerConfig)

type routerConfig struct {
	trialFiles []string
}

// WithTrialFiles serves a summary of the given calibration trial files on
// GET /api/trials.
func WithTrialFiles(files ...string) RouterOption {
	return func(c *routerConfig) { c.trialFiles = append(c.trialFiles, files...) }
}

// NewRouter serves the websocket feed on /ws and the full frame list on
// /api/frames.
func NewRouter(hub *Hub, frames []Frame, opts ...RouterOption) *gin.Engine {
	var cfg routerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", handleWebsocket(hub))

	r.GET("/api/frames", func(c *gin.Context) {
		c.JSON(http.StatusOK, frames)
	})
	r.GET("/api/frames/:seq", func(c *gin.Context) {
		seq, err := strconv.Atoi(c.Param("seq"))
		if err != nil || seq < 0 || seq >= len(frames) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such frame"})
			return
		}
		c.JSON(http.StatusOK, frames[seq])
	})

	if len(cfg.trialFiles) > 0 {
		r.GET("/api/trials", func(c *gin.Context) {
			summaries, err := store.SummarizeTrials(c.Request.Context(), cfg.trialFiles)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, summaries)
		})
	}

	return r
}

func handleWebsocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "err", err)
			return
		}
		if !hub.Register(conn) {
			conn.Close()
			return
		}

		// Spectators only listen; reading detects the disconnect.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Unregister(conn)
				return
			}
		}
	}
}
