package handlers

import (
	"net/http"

	"github.com/Afterbark/youtube-to-mp3/web"
	"github.com/gin-gonic/gin"
)

// Home serves the single-page client
func Home(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
}
