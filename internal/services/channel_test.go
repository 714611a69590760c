package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/data/repos/testutil"
)

func TestGetChannelUnknownUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.channel.GetChannel(ctx, uuid.New())
	assertAPIError(t, err, 404, "channel_not_found")
}

func TestUpdateChannelDisplayName(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID := env.registeredOwner(t, ctx, "rename@studybits.dev")

	name := "The Study Corner"
	channel, err := env.channel.UpdateChannel(ctx, ownerID, ChannelUpdate{DisplayName: &name})
	if err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}
	if channel.DisplayName != name {
		t.Fatalf("display name: want=%q got=%q", name, channel.DisplayName)
	}
}

func TestUpdateChannelBannerReplacement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID := env.registeredOwner(t, ctx, "banner@studybits.dev")

	// First banner: nothing to replace, nothing deleted.
	channel, err := env.channel.UpdateChannel(ctx, ownerID, ChannelUpdate{
		Banner: &ImageUpload{Filename: "first.png", Reader: strings.NewReader("one")},
	})
	if err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}
	firstURL := channel.BannerURL
	if firstURL == "" {
		t.Fatalf("banner url not set")
	}
	if len(env.bucket.deletes) != 0 {
		t.Fatalf("deletes after first banner: got=%v", env.bucket.deletes)
	}

	// Second banner replaces the first after commit.
	channel, err = env.channel.UpdateChannel(ctx, ownerID, ChannelUpdate{
		Banner: &ImageUpload{Filename: "second.png", Reader: strings.NewReader("two")},
	})
	if err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}
	if channel.BannerURL == firstURL || channel.BannerURL == "" {
		t.Fatalf("banner url not replaced: got=%q", channel.BannerURL)
	}
	if !env.bucket.deleted(firstURL) {
		t.Fatalf("replaced banner %s was not deleted", firstURL)
	}
}

func TestUpdateChannelUploadFailureCompensates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID := env.registeredOwner(t, ctx, "broken@studybits.dev")

	env.bucket.uploadErr = errUploadRefused
	_, err := env.channel.UpdateChannel(ctx, ownerID, ChannelUpdate{
		ProfilePic: &ImageUpload{Filename: "pic.png", Reader: strings.NewReader("x")},
	})
	if err == nil {
		t.Fatalf("expected upload failure")
	}

	env.bucket.uploadErr = nil
	channel, err := env.channel.GetChannel(ctx, ownerID)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if channel.ProfilePicURL != "" {
		t.Fatalf("profile pic set despite failed upload: %q", channel.ProfilePicURL)
	}
}

func TestGetChannelCoursesPreservesOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID := env.registeredOwner(t, ctx, "ordered-channel@studybits.dev")

	first, err := env.catalog.CreateCourse(ctx, ownerID, CourseInput{Name: "first course"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	second, err := env.catalog.CreateCourse(ctx, ownerID, CourseInput{Name: "second course"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	courses, err := env.channel.GetChannelCourses(ctx, ownerID)
	if err != nil {
		t.Fatalf("GetChannelCourses: %v", err)
	}
	if len(courses) != 2 || courses[0].ID != first.ID || courses[1].ID != second.ID {
		t.Fatalf("course order: got=%v", courses)
	}

	// Empty channels return an empty slice, not an error.
	other := testutil.SeedUser(t, ctx, env.tx, "empty-channel@studybits.dev")
	testutil.SeedChannel(t, ctx, env.tx, other.ID)
	courses, err = env.channel.GetChannelCourses(ctx, other.ID)
	if err != nil || len(courses) != 0 {
		t.Fatalf("empty channel: err=%v len=%d", err, len(courses))
	}
}
