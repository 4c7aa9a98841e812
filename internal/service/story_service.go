package service

import (
	"context"
	"strings"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
)

// StoryService 快拍：创建后只追加浏览记录，24 小时后过期
type StoryService struct {
	users   UserStore
	stories StoryStore
	now     func() time.Time
}

func NewStoryService(d Deps) *StoryService {
	return &StoryService{users: d.Users, stories: d.Stories, now: d.clock()}
}

func (s *StoryService) since() time.Time {
	return s.now().Add(-model.StoryTTL)
}

func (s *StoryService) Create(ctx context.Context, authorID, media string, mediaType model.MediaType, caption string) (*model.Story, error) {
	if strings.TrimSpace(media) == "" {
		return nil, pkg.Invalid("media required")
	}
	if !mediaType.Valid() {
		return nil, pkg.InvalidState("media type must be image or video")
	}
	author, err := s.users.FindActiveByID(ctx, authorID)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	story := &model.Story{
		AuthorID:  author.ID,
		Media:     media,
		MediaType: mediaType,
		Caption:   strings.TrimSpace(caption),
		CreatedAt: s.now(),
	}
	if err = s.stories.Create(ctx, story); err != nil {
		return nil, pkg.Internal("create story", err)
	}
	return story, nil
}

// UserStories 某用户 24 小时内的快拍
func (s *StoryService) UserStories(ctx context.Context, authorID, viewerID string) ([]StoryItem, error) {
	if _, err := s.users.FindActiveByID(ctx, authorID); err != nil {
		return nil, docErr(err, "user not found")
	}
	stories, err := s.stories.ListByAuthors(ctx, []string{authorID}, s.since())
	if err != nil {
		return nil, pkg.Internal("load stories", err)
	}
	items := make([]StoryItem, 0, len(stories))
	for i := range stories {
		items = append(items, StoryItem{Story: &stories[i], HasViewed: stories[i].HasViewed(viewerID)})
	}
	return items, nil
}

// View 记录浏览，同一用户重复浏览不计数
func (s *StoryService) View(ctx context.Context, storyID, viewerID string) (int64, error) {
	if _, err := s.stories.FindLive(ctx, storyID, s.since()); err != nil {
		return 0, docErr(err, "story not found")
	}
	n, err := s.stories.AddView(ctx, storyID, viewerID, s.now())
	if err != nil {
		return 0, docErr(err, "story not found")
	}
	return n, nil
}

// Delete 仅作者可删除
func (s *StoryService) Delete(ctx context.Context, storyID, userID string) error {
	story, err := s.stories.FindLive(ctx, storyID, s.since())
	if err != nil {
		return docErr(err, "story not found")
	}
	if story.AuthorID.Hex() != userID {
		return pkg.Forbidden("not the author of this story")
	}
	if err = s.stories.Delete(ctx, storyID); err != nil {
		return docErr(err, "story not found")
	}
	return nil
}
