package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/render"
)

// Desktop is the state the status API reports on.
// *compositor.Compositor satisfies it.
type Desktop interface {
	Snapshot() desktop.Snapshot
	Mobile() bool
	FrameStats() render.PacingStats
}

// Handlers serves the read-only endpoints
type Handlers struct {
	desktop Desktop
}

// NewHandlers creates handlers over d
func NewHandlers(d Desktop) *Handlers {
	return &Handlers{desktop: d}
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Surfaces lists every surface
func (h *Handlers) Surfaces(c *gin.Context) {
	snap := h.desktop.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"surfaces":    snap.Surfaces,
		"z_order":     snap.ZOrder,
		"focus_order": snap.FocusOrder,
		"count":       len(snap.Surfaces),
	})
}

// Workspaces lists workspaces and the active one
func (h *Handlers) Workspaces(c *gin.Context) {
	snap := h.desktop.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"workspaces": snap.Workspaces,
		"active":     snap.Active,
	})
}

// Focus returns the focused surface. focused is 0 and surface is omitted
// when nothing holds focus.
func (h *Handlers) Focus(c *gin.Context) {
	snap := h.desktop.Snapshot()
	resp := gin.H{"success": true, "focused": snap.Focused}
	for _, s := range snap.Surfaces {
		if s.ID == snap.Focused {
			resp["surface"] = s
			break
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Device reports the platform type
func (h *Handlers) Device(c *gin.Context) {
	mobile := h.desktop.Mobile()
	kind := "desktop"
	if mobile {
		kind = "mobile"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"mobile":  mobile,
		"type":    kind,
		"output":  h.desktop.Snapshot().Output,
	})
}

// Frames reports frame pacing
func (h *Handlers) Frames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pacing":  h.desktop.FrameStats(),
	})
}
