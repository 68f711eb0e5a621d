package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/aida/ai/routing"
	"github.com/hrygo/aida/plugin/vision"
	"github.com/hrygo/aida/plugin/webfetch"
)

// ErrUnavailable marks an action whose collaborator is not configured.
var ErrUnavailable = errors.New("not available")

const searchResults = 2

// Deps are the collaborators behind the actions. Any of them may be nil.
type Deps struct {
	Camera   Camera
	Screen   Screen
	Windows  WindowManager
	Browser  Browser
	Mail     Mailbox
	Calendar Calendar
	Vision   Vision
	Asker    Asker
	Home     Home
	Files    Files
	Feeds    Feeds
	Web      Web

	// LastResponse returns the most recent assistant reply, "" when there is none.
	LastResponse func() string
	// Status receives progress messages such as "Reading screen...".
	Status func(string)
	Now    func() time.Time
}

// Handler implements routing.ActionHandler.
type Handler struct {
	d Deps
}

var _ routing.ActionHandler = (*Handler)(nil)

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{d: d}
}

func (h *Handler) status(text string) {
	if h.d.Status != nil {
		h.d.Status(text)
	}
}

func unavailable(what string) error {
	return fmt.Errorf("%s %w", what, ErrUnavailable)
}

func (h *Handler) ReadScreen(ctx context.Context) (string, error) {
	h.status("Reading screen...")
	if h.d.Screen == nil || h.d.Vision == nil {
		return "", unavailable("screen capture is")
	}
	image, err := h.d.Screen.CaptureWindow(ctx)
	if err != nil || len(image) == 0 {
		image, err = h.d.Screen.CaptureDesktop(ctx)
	}
	if err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "Sorry, I couldn't see the screen to read it.", nil
	}
	text, err := h.d.Vision.Describe(ctx, vision.PromptReadText, image)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "I couldn't find any readable text.", nil
	}
	return "Here is what I found: " + text, nil
}

func (h *Handler) DescribeWebcam(ctx context.Context) (string, error) {
	h.status("Looking through webcam...")
	if h.d.Camera == nil || h.d.Vision == nil {
		return "", unavailable("the webcam is")
	}
	image, err := h.d.Camera.Capture(ctx)
	if err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "Sorry, I couldn't capture an image from the webcam.", nil
	}
	return h.d.Vision.Describe(ctx, vision.PromptDescribeWebcam, image)
}

func (h *Handler) DescribeScreen(ctx context.Context) (string, error) {
	h.status("Looking at your screen...")
	if h.d.Screen == nil || h.d.Vision == nil {
		return "", unavailable("screen capture is")
	}
	image, err := h.d.Screen.CaptureDesktop(ctx)
	if err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "Sorry, I couldn't capture a screenshot.", nil
	}
	return h.d.Vision.Describe(ctx, vision.PromptDescribeScreen, image)
}

const noWindowManager = "Sorry, window management is not available."

func (h *Handler) ListWindows(ctx context.Context) (string, error) {
	h.status("Checking open windows...")
	if h.d.Windows == nil {
		return noWindowManager, nil
	}
	windows, err := h.d.Windows.List(ctx)
	if err != nil {
		return "", err
	}
	return FormatWindows(windows), nil
}

// FormatWindows renders a window list, marking the active one.
func FormatWindows(windows []Window) string {
	if len(windows) == 0 {
		return "No windows open."
	}
	lines := []string{"Open windows:"}
	for _, w := range windows {
		line := "  - " + w.Name
		if w.Active {
			line += " (active)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) FocusWindow(ctx context.Context, app string) (string, error) {
	h.status("Switching to " + app + "...")
	if h.d.Windows == nil {
		return noWindowManager, nil
	}
	ok, err := h.d.Windows.Focus(ctx, app)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Sorry, I couldn't find a window matching '%s'.", app), nil
	}
	return fmt.Sprintf("I've switched to %s.", app), nil
}

func (h *Handler) OrganizeDirectory(ctx context.Context, target string) (string, error) {
	if h.d.Files == nil {
		return "", unavailable("file management is")
	}
	return h.d.Files.OrganizeDirectory(ctx, target)
}

func (h *Handler) CompressDirectory(ctx context.Context, target string) (string, error) {
	if h.d.Files == nil {
		return "", unavailable("file management is")
	}
	return h.d.Files.CompressDirectory(ctx, target)
}

func (h *Handler) RenameFile(ctx context.Context, oldName, newName string) (string, error) {
	if h.d.Files == nil {
		return "", unavailable("file management is")
	}
	return h.d.Files.RenameFile(ctx, oldName, newName)
}

func (h *Handler) SaveLastResponse(ctx context.Context, filename string) (string, error) {
	h.status("Saving...")
	if h.d.Files == nil {
		return "", unavailable("file management is")
	}
	last := ""
	if h.d.LastResponse != nil {
		last = h.d.LastResponse()
	}
	if last == "" {
		return "There's nothing for me to save yet.", nil
	}
	return h.d.Files.SaveDocument(ctx, last, filename)
}

func (h *Handler) ResearchAndSave(ctx context.Context, topic, filename string) (string, error) {
	h.status("Researching " + topic + "...")
	if h.d.Files == nil {
		return "", unavailable("file management is")
	}
	research, ok, err := h.research(ctx, topic)
	if err != nil || !ok {
		return research, err
	}
	content := fmt.Sprintf("# Research on: %s\n\nDate: %s\n\n---\n\n%s",
		titleCase(topic), h.d.Now().Format("2006-01-02"), research)
	return h.d.Files.SaveDocument(ctx, content, filename)
}

// research searches the web. ok is false when nothing could be fetched, the
// returned text then explains that to the user.
func (h *Handler) research(ctx context.Context, query string) (string, bool, error) {
	if h.d.Web == nil {
		return "", false, unavailable("web search is")
	}
	h.status("Fetching info about: " + query)
	results := h.d.Web.Search(ctx, query, searchResults)
	if !webfetch.AnySuccess(results) {
		return fmt.Sprintf("Sorry, I couldn't find information about '%s'.", query), false, nil
	}
	return webfetch.SummarizeForLLM(results), true, nil
}

func (h *Handler) LatestNews(ctx context.Context) (string, error) {
	if h.d.Feeds == nil || !h.d.Feeds.Configured() {
		return "", routing.ErrFallthrough
	}
	h.status("Fetching news feeds...")
	return h.d.Feeds.Latest(ctx)
}

func (h *Handler) FetchFeed(ctx context.Context, url string) (string, error) {
	if h.d.Feeds == nil {
		return "", unavailable("RSS is")
	}
	return h.d.Feeds.FetchFeed(ctx, url, 0)
}

func (h *Handler) CheckMail(ctx context.Context) (string, error) {
	h.status("Checking emails...")
	if h.d.Mail == nil {
		return "Mail integration is not enabled in settings.", nil
	}
	emails, err := h.d.Mail.Unread(ctx)
	if err != nil {
		return "", err
	}
	if len(emails) == 0 {
		return "You have no unread emails.", nil
	}
	lines := []string{"You have new emails:"}
	for _, e := range emails {
		lines = append(lines, "From: "+e.From, "Subject: "+e.Subject, "Snippet: "+e.Snippet, "---")
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handler) CheckCalendar(ctx context.Context) (string, error) {
	h.status("Checking calendar...")
	if h.d.Calendar == nil {
		return "Calendar integration is not enabled in settings.", nil
	}
	events, err := h.d.Calendar.Today(ctx)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "You have no events on your calendar for today.", nil
	}
	lines := []string{"Here's what's on your calendar today:"}
	for _, e := range events {
		when := "(all day)"
		if e.Start != "" {
			when = "at " + e.Start
		}
		lines = append(lines, fmt.Sprintf("- %s %s", e.Summary, when))
	}
	return strings.Join(lines, "\n"), nil
}

const noHomeAssistant = "Home Assistant integration is not enabled."

func (h *Handler) ListHomeDevices(ctx context.Context) (string, error) {
	h.status("Listing Home Assistant devices...")
	if h.d.Home == nil {
		return noHomeAssistant, nil
	}
	return h.d.Home.ListDevices(ctx)
}

func (h *Handler) CheckHomeDevice(ctx context.Context, device, expected string) (string, error) {
	h.status("Checking " + device + "...")
	if h.d.Home == nil {
		return noHomeAssistant, nil
	}
	return h.d.Home.CheckDevice(ctx, device, expected)
}

func (h *Handler) ControlHomeDevice(ctx context.Context, device, state string) (string, error) {
	h.status("Controlling " + device + "...")
	if h.d.Home == nil {
		return noHomeAssistant, nil
	}
	return h.d.Home.ControlDevice(ctx, device, state)
}

// FetchInfo answers a short question from web results through the language model.
func (h *Handler) FetchInfo(ctx context.Context, query string) (string, error) {
	research, ok, err := h.research(ctx, query)
	if err != nil || !ok {
		return research, err
	}
	if h.d.Asker == nil {
		return research, nil
	}
	slog.Info("actions: summarizing search results", "query", query, "context_len", len(research))
	return h.d.Asker.Ask(ctx, FetchInfoPrompt(query, research))
}

// FetchInfoPrompt asks for an answer grounded only in the fetched information.
func FetchInfoPrompt(query, information string) string {
	return fmt.Sprintf(`Based on the information provided below, answer the following question: "%s"

Information:
%s

Instructions:
1. If the answer is contained in the information above, provide a concise summary.
2. If the information does NOT contain the answer or is irrelevant, state clearly: "I could not find information about '%s' in the search results."
3. Do NOT make up facts or use outside knowledge to fill in gaps. Only use the provided information.`, query, information, query)
}

func (h *Handler) Search(ctx context.Context, query string) (string, error) {
	h.status("Searching for: " + query)
	if h.d.Browser == nil {
		return "", unavailable("the browser is")
	}
	if err := h.d.Browser.Search(ctx, query); err != nil {
		return "", err
	}
	return fmt.Sprintf("I've searched for '%s' in your browser.", query), nil
}

func (h *Handler) CloseBrowser(ctx context.Context) (string, error) {
	h.status("Closing browser...")
	if h.d.Browser == nil {
		return "", unavailable("the browser is")
	}
	if err := h.d.Browser.Close(ctx); err != nil {
		return "", err
	}
	return "I've closed the browser.", nil
}

func (h *Handler) OpenURL(ctx context.Context, url string) (string, error) {
	url = routing.NormalizeURL(url)
	h.status("Opening: " + url)
	if h.d.Browser == nil {
		return "", unavailable("the browser is")
	}
	if err := h.d.Browser.Navigate(ctx, url); err != nil {
		return "", err
	}
	return fmt.Sprintf("I've opened %s in your browser.", url), nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
