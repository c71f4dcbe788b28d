package posts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/storage"
)

func fsService(t *testing.T) (*Service, *[]Event) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var events []Event
	return NewService(NewFSRepository(store, "blog"), func(e Event) { events = append(events, e) }), &events
}

func fm(title string) *models.Frontmatter {
	return &models.Frontmatter{Title: title, Description: "d", Date: "2024-04-01", Categories: []string{"farm"}}
}

func TestCreateThenDuplicateConflicts(t *testing.T) {
	s, events := fsService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "first-post", fm("First"), "Hello\n")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.SHA == "" || p.Title != "First" {
		t.Errorf("post = %+v", p)
	}

	_, err = s.Create(ctx, "first-post", fm("Again"), "Other\n")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want already exists", err)
	}
	if apperr.HTTPStatus(err) != 409 {
		t.Errorf("status = %d", apperr.HTTPStatus(err))
	}
	if len(*events) != 1 || (*events)[0] != (Event{EventCreated, "first-post"}) {
		t.Errorf("events = %v", *events)
	}
}

func TestUpdateWithRevision(t *testing.T) {
	s, _ := fsService(t)
	ctx := context.Background()
	created, err := s.Create(ctx, "p", fm("P"), "v1\n")
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if got.SHA != created.SHA || got.Content != "v1\n" {
		t.Fatalf("get = %+v", got)
	}

	updated, err := s.Update(ctx, "p", fm("P2"), "v2\n", created.SHA)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.SHA == created.SHA {
		t.Error("revision did not change")
	}

	_, err = s.Update(ctx, "p", fm("P3"), "v3\n", created.SHA)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update err = %v, want conflict", err)
	}
}

func TestDelete(t *testing.T) {
	s, events := fsService(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, "gone", fm("Gone"), "x")

	if err := s.Delete(ctx, "gone", ""); !errors.Is(err, apperr.ErrInvalid) || apperr.Message(err) != MsgSHARequired {
		t.Errorf("missing sha err = %v", err)
	}
	if err := s.Delete(ctx, "gone", "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale err = %v", err)
	}
	if err := s.Delete(ctx, "gone", p.SHA); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, apperr.ErrNotFound) || apperr.Message(err) != MsgNotFound {
		t.Errorf("get after delete err = %v", err)
	}
	if len(*events) != 2 || (*events)[1].Type != EventDeleted {
		t.Errorf("events = %v", *events)
	}
}

func TestValidation(t *testing.T) {
	s, _ := fsService(t)
	ctx := context.Background()
	cases := []struct {
		name    string
		slug    string
		fm      *models.Frontmatter
		content string
		msg     string
	}{
		{"missing slug", "", fm("T"), "x", MsgMissingFields},
		{"missing frontmatter", "ok", nil, "x", MsgMissingFields},
		{"missing content", "ok", fm("T"), "", MsgMissingFields},
		{"uppercase slug", "Bad-Slug", fm("T"), "x", MsgSlugFormat},
		{"slug with space", "bad slug", fm("T"), "x", MsgSlugFormat},
		{"blank title", "ok", fm("  "), "x", MsgTitleRequired},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.Create(ctx, c.slug, c.fm, c.content)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Fatalf("err = %v, want invalid", err)
			}
			if got := apperr.Message(err); got != c.msg {
				t.Errorf("message = %q, want %q", got, c.msg)
			}
		})
	}
}

func TestUpdateMissingFields(t *testing.T) {
	s, _ := fsService(t)
	_, err := s.Update(context.Background(), "p", fm("T"), "body", "")
	if apperr.Message(err) != MsgMissingFields {
		t.Errorf("err = %v", err)
	}
}

func TestDefaultsFilled(t *testing.T) {
	s, _ := fsService(t)
	p, err := s.Create(context.Background(), "bare", &models.Frontmatter{Title: "Bare"}, "x")
	if err != nil {
		t.Fatal(err)
	}
	if p.Date == "" || p.Authors == nil || p.Tags == nil || p.Categories == nil {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestListNewestFirst(t *testing.T) {
	s, _ := fsService(t)
	ctx := context.Background()
	older := fm("Older")
	older.Date = "2023-01-01"
	_, _ = s.Create(ctx, "older", older, "a")
	_, _ = s.Create(ctx, "newer", fm("Newer"), "b")

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Slug != "newer" || list[1].Slug != "older" {
		t.Errorf("list = %+v", list)
	}
}

func TestConcurrentUpdatesOneWins(t *testing.T) {
	s, _ := fsService(t)
	s.notify = func(Event) {}
	ctx := context.Background()
	p, err := s.Create(ctx, "contested", fm("Start"), "v0\n")
	if err != nil {
		t.Fatal(err)
	}

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Update(ctx, "contested", fm(fmt.Sprintf("Writer %d", i)), fmt.Sprintf("v%d\n", i+1), p.SHA)
		}(i)
	}
	wg.Wait()

	won := 0
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case !errors.Is(err, apperr.ErrConflict):
			t.Errorf("writer %d: err = %v, want conflict", i, err)
		}
	}
	if won != 1 {
		t.Errorf("%d updates succeeded with the same revision, want 1", won)
	}
	if n := len(s.locks.slugs); n != 0 {
		t.Errorf("%d slug locks left behind", n)
	}
}
