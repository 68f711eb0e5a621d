package routing

import (
	"context"
)

// FeatureHomeAssistant gates the Home Assistant routes.
const FeatureHomeAssistant = "home_assistant"

// ActionHandler performs the actions the table routes to.
// Methods return the text to speak; an error is turned into an apology naming the capability.
type ActionHandler interface {
	ReadScreen(ctx context.Context) (string, error)
	DescribeWebcam(ctx context.Context) (string, error)
	DescribeScreen(ctx context.Context) (string, error)
	ListWindows(ctx context.Context) (string, error)
	FocusWindow(ctx context.Context, app string) (string, error)

	OrganizeDirectory(ctx context.Context, target string) (string, error)
	CompressDirectory(ctx context.Context, target string) (string, error)
	RenameFile(ctx context.Context, oldName, newName string) (string, error)
	SaveLastResponse(ctx context.Context, filename string) (string, error)
	ResearchAndSave(ctx context.Context, topic, filename string) (string, error)

	// LatestNews reads the configured feeds. It returns ErrFallthrough when none are configured.
	LatestNews(ctx context.Context) (string, error)
	FetchFeed(ctx context.Context, url string) (string, error)
	CheckMail(ctx context.Context) (string, error)
	CheckCalendar(ctx context.Context) (string, error)

	ListHomeDevices(ctx context.Context) (string, error)
	// CheckHomeDevice reports a device state. expected is "" for an open question.
	CheckHomeDevice(ctx context.Context, device, expected string) (string, error)
	ControlHomeDevice(ctx context.Context, device, state string) (string, error)

	// FetchInfo answers a short factual query from the web without opening the browser.
	FetchInfo(ctx context.Context, query string) (string, error)
	Search(ctx context.Context, query string) (string, error)
	CloseBrowser(ctx context.Context) (string, error)
	OpenURL(ctx context.Context, url string) (string, error)
}

func noArgs(fn func(context.Context) (string, error)) Handler {
	return func(ctx context.Context, _ Match) (string, error) {
		return fn(ctx)
	}
}

func oneArg(group string, fn func(context.Context, string) (string, error)) Handler {
	return func(ctx context.Context, m Match) (string, error) {
		return fn(ctx, m.Group(group))
	}
}

func twoArgs(first, second string, fn func(context.Context, string, string) (string, error)) Handler {
	return func(ctx context.Context, m Match) (string, error) {
		return fn(ctx, m.Group(first), m.Group(second))
	}
}

// ActionRoutes returns the action table in dispatch order.
func ActionRoutes(h ActionHandler) []Route {
	return []Route{
		{
			Name:       "read_screen",
			Capability: "read the screen",
			Matcher: Patterns(
				`read (?:this )?(?:text|window|page|screen|article)`,
				`les (?:dette )?(?:tekst|vindu|side|skjerm|artikkel)`,
				`read what(?:'s| is) on (?:the )?screen`,
				`hva står det`,
			),
			Handler: noArgs(h.ReadScreen),
		},
		{
			Name:       "webcam",
			Capability: "access the webcam",
			Matcher: Patterns(
				`what do you see`,
				`hva ser du`,
				`can you see me`,
				`do you see me`,
				`look at me`,
				`se på meg`,
				`describe me`,
				`what am i wearing`,
				`what do i look like`,
				`see me`,
				`use.* camera`,
				`use.* webcam`,
				`take.* photo`,
				`take.* picture`,
				`ser du meg`,
				`beskriv meg`,
			),
			Handler: noArgs(h.DescribeWebcam),
		},
		{
			Name:       "screenshot",
			Capability: "capture the screen",
			Matcher: Patterns(
				`what(?:'s| is) on (?:my |the )?screen`,
				`hva er på skjermen`,
				`show me (?:my |the )?screen`,
				`describe (?:my |the )?screen`,
				`take a screenshot`,
				`ta et skjermbilde`,
			),
			Handler: noArgs(h.DescribeScreen),
		},
		{
			Name:       "list_windows",
			Capability: "list the windows",
			Matcher: Patterns(
				`what (?:windows?|apps?) (?:are |is )?open`,
				`hvilke vinduer er åpne`,
				`list (?:open )?windows`,
				`show (?:open )?windows`,
			),
			Handler: noArgs(h.ListWindows),
		},
		{
			Name:       "focus_window",
			Capability: "switch windows",
			Matcher: Patterns(
				`(?:switch to|focus|open|go to) (?P<app>.+?) (?:window|app)`,
				`bytt til (?P<app>.+)`,
			),
			Handler: oneArg("app", h.FocusWindow),
		},
		{
			Name:       "organize",
			Capability: "organize that folder",
			Matcher:    Patterns(`organize (?:my )?(?P<target>\w+)(?: folder| directory)?`),
			Handler:    oneArg("target", h.OrganizeDirectory),
		},
		{
			Name:       "compress",
			Capability: "compress that folder",
			Matcher:    Patterns(`compress (?:my )?(?P<target>\w+)(?: folder| directory)?`),
			Handler:    oneArg("target", h.CompressDirectory),
		},
		{
			Name:       "rename",
			Capability: "rename that file",
			Matcher:    Patterns(`rename (?:file )?(?P<old>.+) to (?P<new>.+)`),
			Handler:    twoArgs("old", "new", h.RenameFile),
		},
		{
			Name:       "save_last_response",
			Capability: "save that",
			Matcher:    Patterns(`save (?:this|that|it) as (?:a )?(?:file|document|note) (?:called|named)? (?P<filename>.+)`),
			Handler:    oneArg("filename", h.SaveLastResponse),
		},
		{
			Name:       "research_and_save",
			Capability: "research that",
			Matcher:    Patterns(`research and save (?P<topic>.+) as (?P<filename>.+)`),
			Handler:    twoArgs("topic", "filename", h.ResearchAndSave),
		},
		{
			Name:       "news",
			Capability: "fetch the news",
			Matcher: Patterns(
				`(?:get|fetch|check|read|show)(?: me)?(?: the)? (?:latest |recent )?news`,
				`(?:latest|recent) news`,
				`what(?:'s| is) (?:the )?(?:latest |recent )?news`,
				`(?:hva|vis)(?: er)?(?: siste)? nyhet(?:er|ene)?`,
				`siste nytt`,
				`check my feeds`,
				`read my feeds`,
			),
			Handler: noArgs(h.LatestNews),
		},
		{
			Name:       "rss_feed",
			Capability: "fetch that feed",
			Matcher:    Patterns(`(?:fetch|get|check|åpne) (?:the )?rss (?:feed )?(?:from |at )?(?P<url>\S+)`),
			Handler: func(ctx context.Context, m Match) (string, error) {
				return h.FetchFeed(ctx, NormalizeURL(m.Group("url")))
			},
		},
		{
			Name:       "mail",
			Capability: "check your emails",
			Matcher:    Patterns(`(?:check|read|show) (?:my )?(?:mail|emails?|inbox)`),
			Handler:    noArgs(h.CheckMail),
		},
		{
			Name:       "calendar",
			Capability: "check your calendar",
			Matcher:    Patterns(`what(?:'s|s| is) on my (?:calendar|agenda|schedule) (?:for )?today`),
			Handler:    noArgs(h.CheckCalendar),
		},
		{
			Name:       "ha_list",
			Capability: "list your devices",
			Matcher:    Patterns(`(?:list|show) (?:all )?(?:ha|home assistant) (?:devices|entities)`),
			Handler:    noArgs(h.ListHomeDevices),
			When:       "features." + FeatureHomeAssistant,
		},
		{
			Name:       "ha_check",
			Capability: "check that device",
			Matcher:    Patterns(`^is (?:the )?(?P<device>.+) (?P<state>on|off|open|closed|locked|unlocked)\?*$`),
			Handler:    twoArgs("device", "state", h.CheckHomeDevice),
			When:       "features." + FeatureHomeAssistant,
		},
		{
			Name:       "ha_status",
			Capability: "check that device",
			Matcher: Patterns(
				`(?:what(?:'s|\s+is)|check) (?:the )?(?:status|state|temperature|humidity|level) (?:of|for|in|at) (?:the )?(?P<device>.+)`,
				`(?:what(?:'s|\s+is)|check) (?:the )?(?P<device>.+) (?:status|state|temperature|humidity|level)`,
				`how is (?:the )?(?P<device>.+)(?: doing)?\?*$`,
			),
			Handler: func(ctx context.Context, m Match) (string, error) {
				return h.CheckHomeDevice(ctx, m.Group("device"), "")
			},
			When: "features." + FeatureHomeAssistant,
		},
		{
			Name:       "ha_control",
			Capability: "control that device",
			Matcher: Patterns(
				`(?:turn|switch) (?P<state>on|off) (?:the )?(?P<device>.+)`,
				`(?:turn|switch) (?:the )?(?P<device>.+) (?P<state>on|off)`,
			),
			Handler: twoArgs("device", "state", h.ControlHomeDevice),
			When:    "features." + FeatureHomeAssistant,
		},
		{
			Name:       "fact_lookup",
			Capability: "fetch that information",
			Matcher: Patterns(
				`(?:fetch|get|retrieve|find) (?:info(?:rmation)? (?:about|on) )?(?P<query>.+)`,
				`what(?:'s|\s+is|\s+are|\s+s) (?P<query>.+)`,
				`tell me about (?P<query>.+)`,
				`explain (?P<query>.+)`,
				`give me (?P<query>.+)`,
				`(?:latest|current) news (?:about|on|from) (?P<query>.+)`,
			).MaxWords("query", 5),
			Handler: oneArg("query", h.FetchInfo),
		},
		{
			Name:       "search",
			Capability: "perform the search",
			Matcher: Patterns(
				`search (?:for |the web for )?(?P<query>.+)`,
				`look up (?P<query>.+)`,
				`google (?P<query>.+)`,
				`open (?:a )?search for (?P<query>.+)`,
				`søk (?:etter )?(?P<query>.+)`,
				`finn (?P<query>.+)`,
			),
			Handler: oneArg("query", h.Search),
		},
		{
			Name:       "close_browser",
			Capability: "close the browser",
			Matcher: Patterns(
				`close (?:the )?browser`,
				`close (?:the )?window`,
				`exit browser`,
				`lukk browser(?:en)?`,
				`lukk nettleser(?:en)?`,
				`lukk vindu(?:et)?`,
				`steng browser(?:en)?`,
			),
			Handler: noArgs(h.CloseBrowser),
		},
		{
			Name:       "open_browser",
			Capability: "open the browser",
			Matcher: Patterns(
				`open (?:the |my )?browser`,
				`open firefox`,
				`open chrome`,
				`open internet`,
				`åpne (?:nett)?leser(?:en)?`,
				`åpne firefox`,
				`start browser`,
			).FullOrShort(4),
			Handler: func(ctx context.Context, _ Match) (string, error) {
				return h.OpenURL(ctx, "https://google.com")
			},
		},
		{
			Name:       "open_url",
			Capability: "open the URL",
			Matcher: Patterns(
				`(?:open|go to|navigate to) (?P<target>https?://\S+)`,
				`(?:open|go to|navigate to) (?P<target>.+)`,
				`(?:åpne|gå til|naviger til) (?P<target>https?://\S+)`,
				`(?:åpne|gå til|naviger til) (?P<target>.+)`,
			),
			Handler: func(ctx context.Context, m Match) (string, error) {
				target := CleanURL(m.Group("target"))
				if LooksLikeURL(target) {
					return h.OpenURL(ctx, NormalizeURL(target))
				}
				return h.Search(ctx, target)
			},
		},
	}
}
