package api

import (
	"bytes"
	_ "embed"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// hostPlaceholder is replaced by the host the page was requested from.
const hostPlaceholder = "ipa.ddr.ish.ere"

//go:embed web/remote.html
var remotePage []byte

func (s *Server) handlePage(c *gin.Context) {
	host := c.Request.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	page := bytes.Replace(s.page, []byte(hostPlaceholder), []byte(host), 1)
	s.deps.Logger.Debug().Str("remote", c.ClientIP()).Msg("remote page served")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
