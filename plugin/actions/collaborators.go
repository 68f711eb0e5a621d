// Package actions implements the assistant's routed actions on top of
// pluggable desktop collaborators. Collaborators that are not configured
// make their actions answer that the capability is unavailable.
package actions

import (
	"context"

	"github.com/hrygo/aida/plugin/webfetch"
)

// Camera grabs a webcam frame.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Screen grabs screenshots. CaptureWindow may return nil data when there is no active window.
type Screen interface {
	CaptureWindow(ctx context.Context) ([]byte, error)
	CaptureDesktop(ctx context.Context) ([]byte, error)
}

// Window is an open desktop window.
type Window struct {
	Name   string
	Active bool
}

// WindowManager lists and focuses desktop windows.
type WindowManager interface {
	List(ctx context.Context) ([]Window, error)
	// Focus returns false when no window matches.
	Focus(ctx context.Context, name string) (bool, error)
}

// Browser drives the user's web browser.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Search(ctx context.Context, query string) error
	Close(ctx context.Context) error
}

// Email is an unread message summary.
type Email struct {
	From    string
	Subject string
	Snippet string
}

// Mailbox reads unread mail.
type Mailbox interface {
	Unread(ctx context.Context) ([]Email, error)
}

// Event is a calendar entry. Start is empty for all-day events.
type Event struct {
	Summary string
	Start   string
}

// Calendar reads today's events.
type Calendar interface {
	Today(ctx context.Context) ([]Event, error)
}

// Vision answers a prompt about an image.
type Vision interface {
	Describe(ctx context.Context, prompt string, image []byte) (string, error)
}

// Asker sends a single prompt to the language model.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Home controls smart home devices.
type Home interface {
	ListDevices(ctx context.Context) (string, error)
	CheckDevice(ctx context.Context, device, expected string) (string, error)
	ControlDevice(ctx context.Context, device, state string) (string, error)
}

// Files performs file operations.
type Files interface {
	OrganizeDirectory(ctx context.Context, name string) (string, error)
	CompressDirectory(ctx context.Context, name string) (string, error)
	RenameFile(ctx context.Context, oldName, newName string) (string, error)
	SaveDocument(ctx context.Context, content, filename string) (string, error)
}

// Feeds reads RSS feeds.
type Feeds interface {
	FetchFeed(ctx context.Context, url string, limit int) (string, error)
	// Latest returns the configured feeds' headlines.
	Latest(ctx context.Context) (string, error)
	Configured() bool
}

// Web searches the web and fetches pages.
type Web interface {
	Search(ctx context.Context, query string, n int) []webfetch.Result
}
