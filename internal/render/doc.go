// Package render hands compositor frames to the GPU on a dedicated
// goroutine.
//
// The compositor's main goroutine builds an immutable Frame from each
// desktop snapshot and posts it to a Mailbox. If the renderer is still busy
// the pending frame is replaced, so the renderer always draws the newest
// state and never a queue of stale ones. Completions travel back as
// FrameDone values carrying the frame's sequence number.
package render
