package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/aida/ai/metrics"
)

// fakeActions records every action it is asked to perform.
type fakeActions struct {
	mu      sync.Mutex
	calls   []string
	newsErr error
	failOn  string
}

func (f *fakeActions) record(call string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failOn != "" && f.failOn == call {
		return "", errors.New("backend unavailable")
	}
	return "ok: " + call, nil
}

func (f *fakeActions) ReadScreen(context.Context) (string, error) { return f.record("ReadScreen") }
func (f *fakeActions) DescribeWebcam(context.Context) (string, error) {
	return f.record("DescribeWebcam")
}
func (f *fakeActions) DescribeScreen(context.Context) (string, error) {
	return f.record("DescribeScreen")
}
func (f *fakeActions) ListWindows(context.Context) (string, error) { return f.record("ListWindows") }
func (f *fakeActions) FocusWindow(_ context.Context, app string) (string, error) {
	return f.record("FocusWindow(" + app + ")")
}
func (f *fakeActions) OrganizeDirectory(_ context.Context, target string) (string, error) {
	return f.record("OrganizeDirectory(" + target + ")")
}
func (f *fakeActions) CompressDirectory(_ context.Context, target string) (string, error) {
	return f.record("CompressDirectory(" + target + ")")
}
func (f *fakeActions) RenameFile(_ context.Context, oldName, newName string) (string, error) {
	return f.record("RenameFile(" + oldName + "," + newName + ")")
}
func (f *fakeActions) SaveLastResponse(_ context.Context, filename string) (string, error) {
	return f.record("SaveLastResponse(" + filename + ")")
}
func (f *fakeActions) ResearchAndSave(_ context.Context, topic, filename string) (string, error) {
	return f.record("ResearchAndSave(" + topic + "," + filename + ")")
}
func (f *fakeActions) LatestNews(context.Context) (string, error) {
	if f.newsErr != nil {
		return "", f.newsErr
	}
	return f.record("LatestNews")
}
func (f *fakeActions) FetchFeed(_ context.Context, url string) (string, error) {
	return f.record("FetchFeed(" + url + ")")
}
func (f *fakeActions) CheckMail(context.Context) (string, error) { return f.record("CheckMail") }
func (f *fakeActions) CheckCalendar(context.Context) (string, error) {
	return f.record("CheckCalendar")
}
func (f *fakeActions) ListHomeDevices(context.Context) (string, error) {
	return f.record("ListHomeDevices")
}
func (f *fakeActions) CheckHomeDevice(_ context.Context, device, expected string) (string, error) {
	return f.record("CheckHomeDevice(" + device + "," + expected + ")")
}
func (f *fakeActions) ControlHomeDevice(_ context.Context, device, state string) (string, error) {
	return f.record("ControlHomeDevice(" + device + "," + state + ")")
}
func (f *fakeActions) FetchInfo(_ context.Context, query string) (string, error) {
	return f.record("FetchInfo(" + query + ")")
}
func (f *fakeActions) Search(_ context.Context, query string) (string, error) {
	return f.record("Search(" + query + ")")
}
func (f *fakeActions) CloseBrowser(context.Context) (string, error) { return f.record("CloseBrowser") }
func (f *fakeActions) OpenURL(_ context.Context, url string) (string, error) {
	return f.record("OpenURL(" + url + ")")
}

type routeCounter struct {
	metrics.Nop
	mu     sync.Mutex
	routes map[string]int
	failed int
}

func (r *routeCounter) RecordRoute(route string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.routes == nil {
		r.routes = make(map[string]int)
	}
	r.routes[route]++
	if !success {
		r.failed++
	}
}

func newActionTable(t *testing.T, actions *fakeActions, homeAssistant bool, opts ...TableOption) *Table {
	t.Helper()
	opts = append(opts, WithFeatures(Features{FeatureHomeAssistant: homeAssistant}))
	table, err := NewTable(ActionRoutes(actions), opts...)
	require.NoError(t, err)
	return table
}

func TestActionTable_Dispatch(t *testing.T) {
	tests := []struct {
		input string
		route string
		call  string
	}{
		{"read this article", "read_screen", "ReadScreen"},
		{"what do you see", "webcam", "DescribeWebcam"},
		{"can you take a photo of me", "webcam", "DescribeWebcam"},
		{"what's on my screen", "screenshot", "DescribeScreen"},
		{"what windows are open", "list_windows", "ListWindows"},
		{"switch to firefox window", "focus_window", "FocusWindow(firefox)"},
		{"organize my downloads folder", "organize", "OrganizeDirectory(downloads)"},
		{"compress my projects", "compress", "CompressDirectory(projects)"},
		{"rename file notes.txt to todo.txt", "rename", "RenameFile(notes.txt,todo.txt)"},
		{"save that as a note called groceries", "save_last_response", "SaveLastResponse(groceries)"},
		{"research and save quantum computing as quantum", "research_and_save", "ResearchAndSave(quantum computing,quantum)"},
		{"get me the latest news", "news", "LatestNews"},
		{"fetch rss feed from hnrss.org/frontpage", "rss_feed", "FetchFeed(https://hnrss.org/frontpage)"},
		{"check my email", "mail", "CheckMail"},
		{"what's on my calendar today", "calendar", "CheckCalendar"},
		{"list home assistant devices", "ha_list", "ListHomeDevices"},
		{"is the garage door open?", "ha_check", "CheckHomeDevice(garage door,open)"},
		{"what's the temperature in the living room", "ha_status", "CheckHomeDevice(living room,)"},
		{"turn on the kitchen light", "ha_control", "ControlHomeDevice(kitchen light,on)"},
		{"switch the fan off", "ha_control", "ControlHomeDevice(fan,off)"},
		{"what's the weather in oslo", "fact_lookup", "FetchInfo(the weather in oslo)"},
		{"search for cheap flights to rome", "search", "Search(cheap flights to rome)"},
		{"close the browser", "close_browser", "CloseBrowser"},
		{"open the browser", "open_browser", "OpenURL(https://google.com)"},
		{"open vg dot no", "open_url", "OpenURL(https://vg.no)"},
		{"go to https://example.com/page", "open_url", "OpenURL(https://example.com/page)"},
		{"open cat videos", "open_url", "Search(cat videos)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			actions := &fakeActions{}
			table := newActionTable(t, actions, true)

			result, ok := table.Dispatch(context.Background(), tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.route, result.Route)
			assert.Equal(t, "ok: "+tt.call, result.Response)
			assert.NoError(t, result.Err)
			assert.Equal(t, []string{tt.call}, actions.calls)
		})
	}
}

func TestActionTable_NoMatch(t *testing.T) {
	actions := &fakeActions{}
	table := newActionTable(t, actions, true)

	for _, input := range []string{
		"tell me a joke",
		"what is the best way to learn to play the guitar quickly",
		"hello",
	} {
		_, ok := table.Dispatch(context.Background(), input)
		assert.False(t, ok, input)
	}
	assert.Empty(t, actions.calls)
}

func TestActionTable_HomeAssistantGuard(t *testing.T) {
	actions := &fakeActions{}
	table := newActionTable(t, actions, false)

	_, ok := table.Dispatch(context.Background(), "turn on the kitchen light")
	assert.False(t, ok)

	// Without Home Assistant the status question reaches the web lookup.
	result, ok := table.Dispatch(context.Background(), "what's the temperature in oslo")
	require.True(t, ok)
	assert.Equal(t, "fact_lookup", result.Route)

	table.SetFeature(FeatureHomeAssistant, true)
	result, ok = table.Dispatch(context.Background(), "turn on the kitchen light")
	require.True(t, ok)
	assert.Equal(t, "ha_control", result.Route)
}

func TestActionTable_NewsFallsThroughWithoutFeeds(t *testing.T) {
	actions := &fakeActions{newsErr: ErrFallthrough}
	table := newActionTable(t, actions, false)

	result, ok := table.Dispatch(context.Background(), "get the news")
	require.True(t, ok)
	assert.Equal(t, "fact_lookup", result.Route)
	assert.Equal(t, []string{"FetchInfo(the news)"}, actions.calls)
}

func TestTable_HandlerErrorBecomesApology(t *testing.T) {
	counter := &routeCounter{}
	actions := &fakeActions{failOn: "CheckMail"}
	table := newActionTable(t, actions, false, WithMetrics(counter))

	result, ok := table.Dispatch(context.Background(), "check my inbox")
	require.True(t, ok)
	assert.Equal(t, "mail", result.Route)
	assert.Equal(t, "Sorry, I couldn't check your emails: backend unavailable", result.Response)
	assert.Error(t, result.Err)
	assert.Equal(t, 1, counter.routes["mail"])
	assert.Equal(t, 1, counter.failed)
}

func TestTable_HandlerPanicBecomesApology(t *testing.T) {
	table, err := NewTable([]Route{{
		Name:    "boom",
		Matcher: Contains("boom"),
		Handler: func(context.Context, Match) (string, error) {
			panic("kaboom")
		},
	}})
	require.NoError(t, err)

	result, ok := table.Dispatch(context.Background(), "boom")
	require.True(t, ok)
	assert.Equal(t, "Sorry, I couldn't do that: internal error: kaboom", result.Response)
}

func TestTable_FirstMatchWins(t *testing.T) {
	var order []string
	handler := func(name string) Handler {
		return func(context.Context, Match) (string, error) {
			order = append(order, name)
			return name, nil
		}
	}
	table, err := NewTable([]Route{
		{Name: "first", Matcher: Contains("hello"), Handler: handler("first")},
		{Name: "second", Matcher: Contains("hello"), Handler: handler("second")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, table.Routes())

	result, ok := table.Dispatch(context.Background(), "hello there")
	require.True(t, ok)
	assert.Equal(t, "first", result.Response)
	assert.Equal(t, []string{"first"}, order)
}

func TestNewTable_Validation(t *testing.T) {
	ok := func(context.Context, Match) (string, error) { return "", nil }

	tests := []struct {
		name   string
		routes []Route
	}{
		{"missing name", []Route{{Matcher: Contains("x"), Handler: ok}}},
		{"duplicate name", []Route{
			{Name: "a", Matcher: Contains("x"), Handler: ok},
			{Name: "a", Matcher: Contains("y"), Handler: ok},
		}},
		{"missing handler", []Route{{Name: "a", Matcher: Contains("x")}}},
		{"missing matcher", []Route{{Name: "a", Handler: ok}}},
		{"invalid condition", []Route{{Name: "a", Matcher: Contains("x"), Handler: ok, When: "features.("}}},
		{"non-boolean condition", []Route{{Name: "a", Matcher: Contains("x"), Handler: ok, When: `"yes"`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.routes)
			assert.Error(t, err)
		})
	}
}

func TestTable_ConditionExpressions(t *testing.T) {
	echo := func(context.Context, Match) (string, error) { return "ran", nil }
	table, err := NewTable([]Route{{
		Name:    "combined",
		Matcher: Contains("lights"),
		Handler: echo,
		When:    `features.home_assistant && !features.quiet_hours`,
	}}, WithFeatures(Features{FeatureHomeAssistant: true}))
	require.NoError(t, err)

	// quiet_hours is missing, so evaluation fails and the route stays closed.
	_, ok := table.Dispatch(context.Background(), "lights please")
	assert.False(t, ok)

	table.SetFeature("quiet_hours", false)
	_, ok = table.Dispatch(context.Background(), "lights please")
	assert.True(t, ok)

	table.SetFeature("quiet_hours", true)
	_, ok = table.Dispatch(context.Background(), "lights please")
	assert.False(t, ok)
}

func TestTable_FeaturesCopy(t *testing.T) {
	table, err := NewTable(nil, WithFeatures(Features{"a": true}))
	require.NoError(t, err)

	features := table.Features()
	features["a"] = false
	assert.True(t, table.Features()["a"])
}

func TestTable_ConcurrentDispatch(t *testing.T) {
	actions := &fakeActions{}
	table := newActionTable(t, actions, true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table.SetFeature(FeatureHomeAssistant, i%2 == 0)
			table.Dispatch(context.Background(), fmt.Sprintf("search for item %d", i))
		}(i)
	}
	wg.Wait()
	assert.Len(t, actions.calls, 20)
}
