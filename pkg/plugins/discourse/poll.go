package discourse

import (
	"context"
	"fmt"

	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/remote"
)

// Poll runs a native Discourse poll as a governance process: it opens a topic
// carrying poll markup, tallies votes on every update, and completes when the
// poll closes, on Discourse or here.
type Poll struct{}

func (s *Poll) Start(ctx context.Context, proc *process.Process, params map[string]any) error {
	p := proc.Plugin()

	title, _ := params["title"].(string)

	form := map[string]string{
		"raw":   pollMarkup(params),
		"title": title,
	}
	if category, ok := params["category"]; ok {
		form["category"] = intString(category)
	}

	resp, err := newClient(p).Do(ctx, remote.Request{
		Method: "POST",
		Path:   "posts.json",
		Form:   formValues(form),
	})
	if err != nil {
		return err
	}

	// Discourse reports some failures as an errors array in a 200 response.
	if errs, ok := resp["errors"].([]any); ok && len(errs) > 0 {
		return &plugin.ExecutionError{Message: fmt.Sprint(errs)}
	}

	pollURL := fmt.Sprintf("%s/t/%s/%s",
		p.ConfigString("server_url"), stringField(resp, "topic_slug"), intString(resp["topic_id"]))

	if err := proc.State().Set(ctx, "post_id", resp["id"]); err != nil {
		return err
	}

	if err := proc.State().Set(ctx, "topic_id", resp["topic_id"]); err != nil {
		return err
	}

	if err := proc.State().Set(ctx, "topic_slug", resp["topic_slug"]); err != nil {
		return err
	}

	proc.Logger().InfoContext(ctx, "Poll created", "url", pollURL)
	proc.SetOutcome("poll_url", pollURL)

	return nil
}

// Update re-fetches the topic every time so polls closed manually on the
// forum are still detected.
func (s *Poll) Update(ctx context.Context, proc *process.Process) error {
	topicID, ok, err := proc.State().Get(ctx, "topic_id")
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("poll state is missing topic_id")
	}

	resp, err := newClient(proc.Plugin()).Do(ctx, remote.Request{
		Method: "GET",
		Path:   "t/" + intString(topicID) + ".json",
	})
	if err != nil {
		return err
	}

	poll := firstPoll(resp)
	if poll == nil {
		return fmt.Errorf("topic %s carries no poll", intString(topicID))
	}

	s.reconcile(proc, poll)

	return nil
}

func (s *Poll) Close(ctx context.Context, proc *process.Process) error {
	postID, ok, err := proc.State().Get(ctx, "post_id")
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("poll state is missing post_id")
	}

	resp, err := newClient(proc.Plugin()).Do(ctx, remote.Request{
		Method: "PUT",
		Path:   "polls/toggle_status",
		Form: formValues(map[string]string{
			"post_id":   intString(postID),
			"poll_name": "poll",
			"status":    "closed",
		}),
	})
	if err != nil {
		return err
	}

	poll := mapField(resp, "poll")
	if poll == nil {
		return fmt.Errorf("toggle_status response carries no poll")
	}

	s.reconcile(proc, poll)

	return nil
}

// reconcile diffs the fetched poll into the outcome: vote counts per option
// label, and completion once the poll reports closed.
func (s *Poll) reconcile(proc *process.Process, poll map[string]any) {
	votes := map[string]any{}

	if existing, ok := proc.OutcomeField("votes"); ok {
		if m, ok := existing.(map[string]any); ok {
			votes = m
		}
	}

	options, _ := poll["options"].([]any)
	for _, o := range options {
		option, ok := o.(map[string]any)
		if !ok {
			continue
		}

		votes[stringField(option, "html")] = option["votes"]
	}

	proc.SetOutcome("votes", votes)

	if stringField(poll, "status") == "closed" {
		proc.Complete()
	}
}

// pollMarkup builds the BBCode poll block Discourse parses out of the topic
// body.
func pollMarkup(params map[string]any) string {
	closes := ""
	if closingAt, _ := params["closing_at"].(string); closingAt != "" {
		closes = "close=" + closingAt
	}

	options := ""

	if items, ok := params["options"].([]any); ok {
		for _, opt := range items {
			options += "* " + fmt.Sprint(opt) + "\n"
		}
	}

	details, _ := params["details"].(string)
	title, _ := params["title"].(string)

	return fmt.Sprintf(`
%s
[poll type=regular results=always chartType=bar %s]
# %s
%s[/poll]
`, details, closes, title, options)
}

func firstPoll(topic map[string]any) map[string]any {
	posts, _ := mapField(topic, "post_stream")["posts"].([]any)
	if len(posts) == 0 {
		return nil
	}

	first, _ := posts[0].(map[string]any)

	polls, _ := first["polls"].([]any)
	if len(polls) == 0 {
		return nil
	}

	poll, _ := polls[0].(map[string]any)

	return poll
}
