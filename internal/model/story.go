package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoryTTL 快拍存活时间，与 mongo TTL 索引保持一致
const StoryTTL = 24 * time.Hour

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

func (m MediaType) Valid() bool {
	return m == MediaImage || m == MediaVideo
}

type StoryView struct {
	UserID   primitive.ObjectID `bson:"user" json:"userId"`
	ViewedAt time.Time          `bson:"viewedAt" json:"viewedAt"`
}

type Story struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthorID   primitive.ObjectID `bson:"author" json:"authorId"`
	Media      string             `bson:"media" json:"media"`
	MediaType  MediaType          `bson:"mediaType" json:"mediaType"`
	Caption    string             `bson:"caption" json:"caption"`
	Views      []StoryView        `bson:"views" json:"-"`
	ViewsCount int64              `bson:"viewsCount" json:"viewsCount"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// HasViewed 用户是否看过
func (s *Story) HasViewed(userID string) bool {
	for _, v := range s.Views {
		if v.UserID.Hex() == userID {
			return true
		}
	}
	return false
}

// ExpiredAt 在 now 时刻是否已过期
func (s *Story) ExpiredAt(now time.Time) bool {
	return !s.CreatedAt.After(now.Add(-StoryTTL))
}
