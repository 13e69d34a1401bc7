package discourse

var configSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []any{"api_key", "server_url", "webhook_secret"},
	"properties": map[string]any{
		"api_key":        map[string]any{"type": "string"},
		"server_url":     map[string]any{"type": "string"},
		"webhook_secret": map[string]any{"type": "string"},
		"webhook_slug":   map[string]any{"type": "string"},
	},
}

var sendMessageParameters = map[string]any{
	"type":     "object",
	"required": []any{"raw", "title", "target_usernames"},
	"properties": map[string]any{
		"raw":              map[string]any{"type": "string"},
		"title":            map[string]any{"type": "string"},
		"target_usernames": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"initiator":        map[string]any{"type": "string"},
	},
}

var createPostParameters = map[string]any{
	"type":     "object",
	"required": []any{"raw", "topic_id"},
	"properties": map[string]any{
		"raw":       map[string]any{"type": "string"},
		"topic_id":  map[string]any{"type": "integer"},
		"initiator": map[string]any{"type": "string"},
	},
}

var createTopicParameters = map[string]any{
	"type":     "object",
	"required": []any{"raw", "title"},
	"properties": map[string]any{
		"raw":       map[string]any{"type": "string"},
		"title":     map[string]any{"type": "string"},
		"category":  map[string]any{"type": "integer"},
		"initiator": map[string]any{"type": "string"},
	},
}

var deletePostOrTopicParameters = map[string]any{
	"type":     "object",
	"required": []any{"id"},
	"properties": map[string]any{
		"id": map[string]any{"type": "integer"},
	},
}

var lockPostParameters = map[string]any{
	"type":     "object",
	"required": []any{"id", "locked"},
	"properties": map[string]any{
		"id":     map[string]any{"type": "integer"},
		"locked": map[string]any{"type": "boolean"},
	},
}

var createPostOrTopicResponse = map[string]any{
	"type":     "object",
	"required": []any{"url", "topic_id", "post_id"},
	"properties": map[string]any{
		"url":      map[string]any{"type": "string"},
		"topic_id": map[string]any{"type": "integer"},
		"post_id":  map[string]any{"type": "integer"},
	},
}

var lockPostResponse = map[string]any{
	"type":     "object",
	"required": []any{"locked"},
	"properties": map[string]any{
		"locked": map[string]any{"type": "boolean"},
	},
}

var pollInputSchema = map[string]any{
	"type":     "object",
	"required": []any{"title", "options"},
	"properties": map[string]any{
		"title":      map[string]any{"type": "string"},
		"options":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"details":    map[string]any{"type": "string"},
		"category":   map[string]any{"type": "integer"},
		"closing_at": map[string]any{"type": "string", "format": "date"},
	},
}
