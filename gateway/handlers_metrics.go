package gateway

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/c360/envmon/aggregate"
	"github.com/c360/envmon/pkg/timestamp"
	"github.com/c360/envmon/sample"
)

// parseBound parses an optional from/to query parameter. Accepts RFC 3339
// strings and Unix milliseconds; empty means unset (zero).
func parseBound(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	ts, err := timestamp.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "invalid " + name + " timestamp",
		})
		return 0, false
	}
	return ts, true
}

func (s *Server) handleIngest(c *gin.Context) {
	var smp sample.Sample
	if err := c.ShouldBindJSON(&smp); err != nil || smp.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"accepted": false,
			"reason":   "malformed",
			"message":  "malformed reading",
		})
		return
	}

	outcome, err := s.gate.Ingest(c.Request.Context(), "http", smp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "ingestion failed"})
		return
	}
	if !outcome.Accepted {
		c.JSON(http.StatusBadRequest, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleAverage(c *gin.Context) {
	level, err := aggregate.ParseLevel(c.Query("level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown aggregation level"})
		return
	}
	location := c.Query("id")
	if location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing id parameter"})
		return
	}

	from, ok := parseBound(c, "from")
	if !ok {
		return
	}
	to, ok := parseBound(c, "to")
	if !ok {
		return
	}

	result, err := s.engine.Query(c.Request.Context(), level, location, from, to)
	if stderrors.Is(err, aggregate.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"message": "no samples in window"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRawSamples(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing deviceId parameter"})
		return
	}

	from, ok := parseBound(c, "from")
	if !ok {
		return
	}
	to, ok := parseBound(c, "to")
	if !ok {
		return
	}
	from, to = s.engine.Window(from, to)

	samples, err := s.store.RawSamples(c.Request.Context(), deviceID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, samples)
}

func (s *Server) handleCountByProtocol(c *gin.Context) {
	counts, err := s.store.CountByProtocol(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleAvgLatency(c *gin.Context) {
	latencies, err := s.store.AvgLatencyMsByProtocol(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, latencies)
}

func (s *Server) handleDeleteSamples(c *gin.Context) {
	n, err := s.store.DeleteAllSamples(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "delete failed"})
		return
	}
	s.logger.Info("Deleted all samples", "count", n)
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
