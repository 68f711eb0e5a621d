package homeassistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

const devicesPerDomain = 5

// listedDomains are the domains worth reading out.
var listedDomains = map[string]bool{
	"light": true, "switch": true, "sensor": true, "binary_sensor": true,
	"climate": true, "lock": true, "cover": true, "media_player": true,
}

// switchableDomains accept turn_on and turn_off.
var switchableDomains = map[string]bool{"light": true, "switch": true, "fan": true}

// ListDevices summarizes the controllable devices, at most five per domain.
func (c *Client) ListDevices(ctx context.Context) (string, error) {
	states, err := c.States(ctx)
	if err != nil {
		slog.Warn("homeassistant: failed to list entities", "error", err)
		return "I couldn't find any entities or couldn't connect to Home Assistant.", nil
	}
	if len(states) == 0 {
		return "I couldn't find any entities or couldn't connect to Home Assistant.", nil
	}

	var order []string
	byDomain := make(map[string][]string)
	for i := range states {
		domain := states[i].Domain()
		if !listedDomains[domain] {
			continue
		}
		if _, seen := byDomain[domain]; !seen {
			order = append(order, domain)
		}
		byDomain[domain] = append(byDomain[domain], states[i].FriendlyName())
	}
	if len(order) == 0 {
		return "I connected, but found no interesting devices to control.", nil
	}

	lines := []string{"Here are some devices I found:"}
	for _, domain := range order {
		names := byDomain[domain]
		display := strings.Join(names[:min(devicesPerDomain, len(names))], ", ")
		if extra := len(names) - devicesPerDomain; extra > 0 {
			display += fmt.Sprintf(", and %d more", extra)
		}
		lines = append(lines, fmt.Sprintf("%ss: %s", titleWords(domain), display))
	}
	return strings.Join(lines, "\n"), nil
}

// CheckDevice reports a device state. With expected set it answers yes or no.
func (c *Client) CheckDevice(ctx context.Context, device, expected string) (string, error) {
	entityID, err := c.FindEntity(ctx, device)
	if err != nil {
		return "", err
	}
	if entityID == "" {
		return fmt.Sprintf("Sorry, I couldn't find a device named '%s'.", device), nil
	}

	state, err := c.State(ctx, entityID)
	if err != nil {
		slog.Warn("homeassistant: failed to read state", "entity_id", entityID, "error", err)
		return fmt.Sprintf("I found %s (%s), but couldn't read its state.", device, entityID), nil
	}

	name := device
	if friendly, ok := state.Attributes["friendly_name"].(string); ok && friendly != "" {
		name = friendly
	}
	current := describeState(state)
	switch {
	case expected == "":
		return fmt.Sprintf("The %s is currently %s.", name, current), nil
	case strings.EqualFold(state.State, expected):
		return fmt.Sprintf("Yes, the %s is %s.", name, current), nil
	default:
		return fmt.Sprintf("No, the %s is actually %s.", name, current), nil
	}
}

// ControlDevice turns a light, switch or fan on or off.
func (c *Client) ControlDevice(ctx context.Context, device, state string) (string, error) {
	entityID, err := c.FindEntity(ctx, device)
	if err != nil {
		return "", err
	}
	if entityID == "" {
		return fmt.Sprintf("Sorry, I couldn't find a device named '%s'.", device), nil
	}

	domain, _, _ := strings.Cut(entityID, ".")
	if !switchableDomains[domain] {
		return fmt.Sprintf("I found the %s, but I don't know how to turn it %s.", device, state), nil
	}
	if err := c.CallService(ctx, domain, "turn_"+state, map[string]any{"entity_id": entityID}); err != nil {
		slog.Error("homeassistant: service call failed", "entity_id", entityID, "error", err)
		return fmt.Sprintf("Sorry, I failed to turn %s the %s.", state, device), nil
	}
	return fmt.Sprintf("Okay, I've turned %s the %s.", state, device), nil
}

// titleWords capitalizes the first letter of every run of letters, so
// "binary_sensor" becomes "Binary_Sensor".
func titleWords(s string) string {
	runes := []rune(s)
	prevLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if !prevLetter {
				runes[i] = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(runes)
}
