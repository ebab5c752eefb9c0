// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/log"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID reuses the caller's request id or assigns one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = ids.NewRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// observe records request metrics and an access log line. Routes are
// labelled by template so auction ids do not explode cardinality.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		if s.metrics != nil {
			s.metrics.RequestsProcessed.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
			s.metrics.RequestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		s.log.Debug("request",
			log.String("method", c.Request.Method),
			log.String("route", route),
			log.Int("status", status),
			zap.Duration("elapsed", elapsed),
			log.String("requestId", c.GetString(requestIDKey)))
	}
}
