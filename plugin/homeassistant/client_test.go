package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceCall struct {
	Path string
	Data map[string]any
}

type fakeHA struct {
	mu       sync.Mutex
	states   []State
	calls    []serviceCall
	failCall bool
}

func (f *fakeHA) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/states":
			_ = json.NewEncoder(w).Encode(f.states)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/states/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/states/")
			for _, s := range f.states {
				if s.EntityID == id {
					_ = json.NewEncoder(w).Encode(s)
					return
				}
			}
			http.NotFound(w, r)
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/services/"):
			if f.failCall {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			var data map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&data))
			f.calls = append(f.calls, serviceCall{Path: strings.TrimPrefix(r.URL.Path, "/api/services/"), Data: data})
			_, _ = w.Write([]byte("[]"))
		default:
			http.NotFound(w, r)
		}
	})
}

func state(id, value string, attrs map[string]any) State {
	return State{EntityID: id, State: value, Attributes: attrs}
}

func newTestClient(t *testing.T, states ...State) (*Client, *fakeHA) {
	t.Helper()
	ha := &fakeHA{states: states}
	srv := httptest.NewServer(ha.handler(t))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "secret-token"), ha
}

func homeStates() []State {
	return []State{
		state("light.kitchen", "on", map[string]any{"friendly_name": "Kitchen Light"}),
		state("light.kitchen_strip", "off", map[string]any{"friendly_name": "Kitchen Light Strip"}),
		state("sensor.living_room_temperature", "21.5", map[string]any{
			"friendly_name": "Living Room Temperature", "unit_of_measurement": "°C",
		}),
		state("lock.front_door", "locked", map[string]any{"friendly_name": "Front Door"}),
		state("todo.handleliste", "2", map[string]any{"friendly_name": "Handleliste"}),
		state("automation.morning", "on", nil),
	}
}

func TestFindEntity(t *testing.T) {
	client, _ := newTestClient(t, homeStates()...)
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"kitchen light strip", "light.kitchen_strip"},
		{"Kitchen Light", "light.kitchen"},
		{"temperature", "sensor.living_room_temperature"},
		{"front_door", "lock.front_door"},
		{"garage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := client.FindEntity(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnauthorized(t *testing.T) {
	ha := &fakeHA{}
	srv := httptest.NewServer(ha.handler(t))
	defer srv.Close()

	_, err := New(srv.URL, "wrong").States(context.Background())
	assert.ErrorContains(t, err, "status code 401")
}

func TestListDevices(t *testing.T) {
	states := homeStates()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		states = append(states, state("binary_sensor.window_"+name, "off", map[string]any{"friendly_name": "Window " + name}))
	}
	client, _ := newTestClient(t, states...)

	text, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Here are some devices I found:\n"+
		"Lights: Kitchen Light, Kitchen Light Strip\n"+
		"Sensors: Living Room Temperature\n"+
		"Locks: Front Door\n"+
		"Binary_Sensors: Window a, Window b, Window c, Window d, Window e", text)

	states = append(states, state("binary_sensor.window_f", "off", nil))
	client, _ = newTestClient(t, states...)
	text, err = client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Window e, and 1 more")
}

func TestListDevices_NothingInteresting(t *testing.T) {
	client, _ := newTestClient(t, state("automation.morning", "on", nil))
	text, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I connected, but found no interesting devices to control.", text)

	client, _ = newTestClient(t)
	text, err = client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any entities or couldn't connect to Home Assistant.", text)
}

func TestCheckDevice(t *testing.T) {
	client, _ := newTestClient(t, homeStates()...)
	ctx := context.Background()

	tests := []struct {
		device, expected, want string
	}{
		{"front door", "locked", "Yes, the Front Door is locked."},
		{"front door", "unlocked", "No, the Front Door is actually locked."},
		{"living room temperature", "", "The Living Room Temperature is currently 21.5 °C."},
		{"garage door", "open", "Sorry, I couldn't find a device named 'garage door'."},
	}
	for _, tt := range tests {
		t.Run(tt.device+"/"+tt.expected, func(t *testing.T) {
			got, err := client.CheckDevice(ctx, tt.device, tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestControlDevice(t *testing.T) {
	client, ha := newTestClient(t, homeStates()...)
	ctx := context.Background()

	reply, err := client.ControlDevice(ctx, "kitchen light", "off")
	require.NoError(t, err)
	assert.Equal(t, "Okay, I've turned off the kitchen light.", reply)
	assert.Equal(t, []serviceCall{{Path: "light/turn_off", Data: map[string]any{"entity_id": "light.kitchen"}}}, ha.calls)

	reply, err = client.ControlDevice(ctx, "front door", "on")
	require.NoError(t, err)
	assert.Equal(t, "I found the front door, but I don't know how to turn it on.", reply)

	ha.failCall = true
	reply, err = client.ControlDevice(ctx, "kitchen light", "on")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I failed to turn on the kitchen light.", reply)
}

func TestTodoItems(t *testing.T) {
	client, ha := newTestClient(t, homeStates()...)
	ctx := context.Background()

	require.NoError(t, client.AddTodoItem(ctx, "Handleliste", "melk"))
	require.NoError(t, client.CompleteTodoItem(ctx, "Dag til dag", "vaske"))

	assert.Equal(t, []serviceCall{
		{Path: "todo/add_item", Data: map[string]any{"entity_id": "todo.handleliste", "item": "melk"}},
		{Path: "todo/update_item", Data: map[string]any{"entity_id": "todo.dag_til_dag", "item": "vaske", "status": "completed"}},
	}, ha.calls)
}

func TestTitleWords(t *testing.T) {
	assert.Equal(t, "Binary_Sensor", titleWords("binary_sensor"))
	assert.Equal(t, "Light", titleWords("light"))
}
