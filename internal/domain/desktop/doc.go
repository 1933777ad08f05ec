/*
Package desktop is the compositor's surface and workspace model.

A Core holds every surface in an arena keyed by SurfaceID together with a
z-stack for painting order and a separate focus ring ordered by how
recently each mapped surface was focused. Cycling walks the ring without
reordering it; an explicit Focus moves a surface to the recent end.

Surface lifecycle:

	Created --Map--> Mapped --Unmap--> Unmapped --Map--> Mapped
	                   |  ^
	     SetFullscreen |  | SetFullscreen(false)
	                   v  |
	               Mapped+Fullscreen

Destroy is allowed from every state and removes the record.

Every mutating call returns a Change listing the surfaces that became
visible, hidden or moved, and the focus and workspace transitions, so a
renderer can apply one operation as one frame.

Example Usage:

	core, err := desktop.New([]string{"1", "2"}, desktop.Rect{Width: 1920, Height: 1080})
	core.Create(7, pid, "terminal", desktop.Rect{Width: 800, Height: 600})
	core.Map(7)
	change, err := core.Focus(7)
*/
package desktop
