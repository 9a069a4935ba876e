package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
)

type IndexHandler struct {
	dir string
}

func NewIndexHandler(dir string) *IndexHandler {
	return &IndexHandler{dir: dir}
}

func (h *IndexHandler) Index(c *gin.Context) {
	c.File(filepath.Join(h.dir, "index.html"))
}
