// Package discourse integrates a Discourse forum: posting actions, inbound
// webhook events, and the poll governance process.
package discourse

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/agorahq/agora/pkg/events"
	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/registry"
	"github.com/agorahq/agora/pkg/remote"
)

const (
	PluginName = "discourse"

	EventPostCreated  = "post_created"
	EventTopicCreated = "topic_created"

	systemUsername = "system"
)

// Descriptor declares the Discourse plugin type.
func Descriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:         PluginName,
		Description:  "Discourse forum integration",
		ConfigSchema: configSchema,
		Events:       []string{EventPostCreated, EventTopicCreated},
		Webhook: &plugin.WebhookSpec{
			SignatureHeader: "X-Discourse-Event-Signature",
			OriginHeader:    "X-Discourse-Instance",
			EventHeader:     "X-Discourse-Event",
			SecretConfigKey: "webhook_secret",
			OriginConfigKey: "server_url",
			SlugConfigKey:   "webhook_slug",
		},
		New: func(p *plugin.Instance) (plugin.Handler, error) {
			return &Discourse{plugin: p, client: newClient(p)}, nil
		},
	}
}

// Register wires the Discourse plugin type, its actions, and its poll process
// into the registry.
func Register(reg *registry.Registry) {
	reg.RegisterPlugin(Descriptor())

	reg.RegisterAction(PluginName, &registry.Action{
		Slug:         "create-message",
		Description:  "Start a new private message thread",
		InputSchema:  sendMessageParameters,
		OutputSchema: createPostOrTopicResponse,
		Handler:      createMessage,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:         "create-post",
		Description:  "Create a new post",
		InputSchema:  createPostParameters,
		OutputSchema: createPostOrTopicResponse,
		Handler:      createPost,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:         "create-topic",
		Description:  "Create a new topic",
		InputSchema:  createTopicParameters,
		OutputSchema: createPostOrTopicResponse,
		Handler:      createTopic,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:        "delete-post",
		Description: "Delete a post",
		InputSchema: deletePostOrTopicParameters,
		Handler:     deletePost,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:        "delete-topic",
		Description: "Delete a topic",
		InputSchema: deletePostOrTopicParameters,
		Handler:     deleteTopic,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:        "recover-post",
		Description: "Recover a deleted post",
		InputSchema: deletePostOrTopicParameters,
		Handler:     recoverPost,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:        "recover-topic",
		Description: "Recover a deleted topic",
		InputSchema: deletePostOrTopicParameters,
		Handler:     recoverTopic,
	})
	reg.RegisterAction(PluginName, &registry.Action{
		Slug:         "lock-post",
		Description:  "Lock or unlock a post",
		InputSchema:  lockPostParameters,
		OutputSchema: lockPostResponse,
		Handler:      lockPost,
	})

	reg.RegisterProcess(PluginName, &process.StrategyInfo{
		Name:        "poll",
		Description: "Run a Discourse poll",
		InputSchema: pollInputSchema,
		New:         func() process.Strategy { return &Poll{} },
	})
}

// Discourse handles instance initialization and webhook event projection.
type Discourse struct {
	plugin *plugin.Instance
	client *remote.Client
}

// Initialize fetches the forum's public metadata and caches the community
// name. An unreachable or misconfigured server aborts instance creation here.
func (d *Discourse) Initialize(ctx context.Context) error {
	about, err := d.client.Do(ctx, remote.Request{Method: "GET", Path: "about.json"})
	if err != nil {
		return err
	}

	name, _ := mapField(about, "about")["title"].(string)

	d.plugin.Logger().InfoContext(ctx, "Initialized Discourse plugin", "community", name)

	return d.plugin.State().Set(ctx, "community_name", name)
}

func (d *Discourse) ProjectEvent(_ context.Context, eventName string, body map[string]any) (*plugin.Projection, error) {
	serverURL := d.plugin.ConfigString("server_url")

	switch eventName {
	case EventPostCreated:
		post := mapField(body, "post")
		if post == nil {
			return nil, fmt.Errorf("post_created payload has no post")
		}

		return &plugin.Projection{
			Initiator: events.Initiator{UserID: stringField(post, "username"), Provider: PluginName},
			Data: map[string]any{
				"raw":      post["raw"],
				"topic_id": post["topic_id"],
				"id":       post["id"],
				"url":      postURL(serverURL, post),
			},
		}, nil

	case EventTopicCreated:
		topic := mapField(body, "topic")
		if topic == nil {
			return nil, fmt.Errorf("topic_created payload has no topic")
		}

		return &plugin.Projection{
			Initiator: events.Initiator{
				UserID:   stringField(mapField(topic, "created_by"), "username"),
				Provider: PluginName,
			},
			Data: map[string]any{
				"title":    topic["title"],
				"id":       topic["id"],
				"tags":     topic["tags"],
				"category": topic["category_id"],
				"url":      topicURL(serverURL, topic),
			},
		}, nil
	}

	return nil, nil
}

func createMessage(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	username, payload := splitInitiator(input)

	usernames, _ := payload["target_usernames"].([]any)
	delete(payload, "target_usernames")

	recipients := ""
	for i, u := range usernames {
		if i > 0 {
			recipients += ","
		}

		recipients += fmt.Sprint(u)
	}

	payload["target_recipients"] = recipients
	payload["archetype"] = "private_message"

	post, err := newClient(p).Do(ctx, remote.Request{
		Method:  "POST",
		Path:    "posts.json",
		Headers: map[string]string{"Api-Username": username},
		JSON:    payload,
	})
	if err != nil {
		return nil, err
	}

	return postResponse(p.ConfigString("server_url"), post), nil
}

func createPost(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	username, payload := splitInitiator(input)

	post, err := newClient(p).Do(ctx, remote.Request{
		Method:  "POST",
		Path:    "posts.json",
		Headers: map[string]string{"Api-Username": username},
		JSON:    payload,
	})
	if err != nil {
		return nil, err
	}

	return postResponse(p.ConfigString("server_url"), post), nil
}

func createTopic(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	username, payload := splitInitiator(input)

	post, err := newClient(p).Do(ctx, remote.Request{
		Method:  "POST",
		Path:    "posts.json",
		Headers: map[string]string{"Api-Username": username},
		JSON:    payload,
	})
	if err != nil {
		return nil, err
	}

	return postResponse(p.ConfigString("server_url"), post), nil
}

func deletePost(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	_, err := newClient(p).Do(ctx, remote.Request{
		Method: "DELETE",
		Path:   "posts/" + intString(input["id"]),
	})

	return nil, err
}

func deleteTopic(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	_, err := newClient(p).Do(ctx, remote.Request{
		Method: "DELETE",
		Path:   "t/" + intString(input["id"]) + ".json",
	})

	return nil, err
}

func recoverPost(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	_, err := newClient(p).Do(ctx, remote.Request{
		Method: "PUT",
		Path:   "posts/" + intString(input["id"]) + "/recover",
	})

	return nil, err
}

func recoverTopic(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	_, err := newClient(p).Do(ctx, remote.Request{
		Method: "PUT",
		Path:   "t/" + intString(input["id"]) + "/recover",
	})

	return nil, err
}

func lockPost(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error) {
	locked, _ := input["locked"].(bool)

	return newClient(p).Do(ctx, remote.Request{
		Method: "PUT",
		Path:   "posts/" + intString(input["id"]) + "/locked",
		Form:   formValues(map[string]string{"locked": strconv.FormatBool(locked)}),
	})
}

func newClient(p *plugin.Instance) *remote.Client {
	return remote.NewClient(p.ConfigString("server_url"), map[string]string{
		"Api-Key":      p.ConfigString("api_key"),
		"Api-Username": systemUsername,
	}, p.Logger())
}

// splitInitiator extracts the acting username and returns the remaining
// parameters as the request payload. The input map is never mutated.
func splitInitiator(input map[string]any) (string, map[string]any) {
	username := systemUsername

	payload := make(map[string]any, len(input))

	for key, value := range input {
		if key == "initiator" {
			if s, ok := value.(string); ok && s != "" {
				username = s
			}

			continue
		}

		payload[key] = value
	}

	return username, payload
}

func postResponse(serverURL string, post map[string]any) map[string]any {
	return map[string]any{
		"url":      postURL(serverURL, post),
		"topic_id": post["topic_id"],
		"post_id":  post["id"],
	}
}

func postURL(serverURL string, post map[string]any) string {
	return fmt.Sprintf("%s/t/%s/%s/%s",
		serverURL, stringField(post, "topic_slug"), intString(post["topic_id"]), intString(post["post_number"]))
}

func topicURL(serverURL string, topic map[string]any) string {
	return fmt.Sprintf("%s/t/%s/%s", serverURL, stringField(topic, "slug"), intString(topic["id"]))
}

func formValues(fields map[string]string) url.Values {
	values := make(url.Values, len(fields))
	for key, value := range fields {
		values.Set(key, value)
	}

	return values
}

func mapField(m map[string]any, key string) map[string]any {
	nested, _ := m[key].(map[string]any)

	return nested
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)

	return value
}

// intString renders a JSON number as a decimal integer for URL construction.
func intString(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprint(v)
	}
}
