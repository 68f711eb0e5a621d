package homeassistant

import (
	"context"
	"strings"
)

// todoEntity resolves a list name such as "Handleliste" to its todo entity.
func (c *Client) todoEntity(ctx context.Context, list string) (string, error) {
	states, err := c.States(ctx)
	if err != nil {
		return "", err
	}
	if id := findEntity(states, list, "todo"); id != "" {
		return id, nil
	}
	return "todo." + slug(list), nil
}

// AddTodoItem adds an item to a Home Assistant todo list.
func (c *Client) AddTodoItem(ctx context.Context, list, item string) error {
	entityID, err := c.todoEntity(ctx, list)
	if err != nil {
		return err
	}
	return c.CallService(ctx, "todo", "add_item", map[string]any{"entity_id": entityID, "item": item})
}

// CompleteTodoItem marks an item on a Home Assistant todo list as completed.
func (c *Client) CompleteTodoItem(ctx context.Context, list, item string) error {
	entityID, err := c.todoEntity(ctx, list)
	if err != nil {
		return err
	}
	return c.CallService(ctx, "todo", "update_item", map[string]any{
		"entity_id": entityID,
		"item":      item,
		"status":    "completed",
	})
}

var slugReplacer = strings.NewReplacer(" ", "_", "-", "_", "æ", "ae", "ø", "o", "å", "a")

func slug(name string) string {
	return slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
