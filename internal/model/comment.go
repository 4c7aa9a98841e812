package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Comment struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AuthorID     primitive.ObjectID   `bson:"author" json:"authorId"`
	PostID       primitive.ObjectID   `bson:"post" json:"postId"`
	ParentID     *primitive.ObjectID  `bson:"parentComment" json:"parentId,omitempty"`
	Content      string               `bson:"content" json:"content"`
	LikesCount   int64                `bson:"likesCount" json:"likesCount"`
	LikedBy      []primitive.ObjectID `bson:"likedBy" json:"-"`
	RepliesCount int64                `bson:"repliesCount" json:"repliesCount"`
	IsDeleted    bool                 `bson:"isDeleted" json:"-"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (c *Comment) IsLikedBy(userID string) bool {
	return containsID(c.LikedBy, userID)
}

func (c *Comment) IsAuthor(userID string) bool {
	return userID != "" && c.AuthorID.Hex() == userID
}
