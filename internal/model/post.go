package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

// MaxImagesPerPost 单个帖子最多图片数
const MaxImagesPerPost = 10

// Valid 判断可见性取值是否合法
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	}
	return false
}

type Post struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AuthorID      primitive.ObjectID   `bson:"author" json:"authorId"`
	Content       string               `bson:"content" json:"content"`
	Images        []string             `bson:"images" json:"images"`
	Visibility    Visibility           `bson:"visibility" json:"visibility"`
	LikesCount    int64                `bson:"likesCount" json:"likesCount"`
	CommentsCount int64                `bson:"commentsCount" json:"commentsCount"`
	LikedBy       []primitive.ObjectID `bson:"likedBy" json:"-"`
	IsDeleted     bool                 `bson:"isDeleted" json:"-"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsLikedBy 判断用户是否点赞过
func (p *Post) IsLikedBy(userID string) bool {
	return containsID(p.LikedBy, userID)
}

// IsAuthor 判断是否为作者
func (p *Post) IsAuthor(userID string) bool {
	return userID != "" && p.AuthorID.Hex() == userID
}

// PostUpdate 帖子更新，nil 字段不修改
type PostUpdate struct {
	Content    *string
	Images     *[]string
	Visibility *Visibility
}

type PostSort int

const (
	SortNewest PostSort = iota
	// SortTrending likesCount desc, createdAt desc
	SortTrending
)

// PostScope 一组作者及其可见级别
type PostScope struct {
	AuthorIDs    []string
	Visibilities []Visibility
}

// PostQuery 帖子列表查询条件，未删除为隐含条件。
// Scopes 非空时命中任意一组即可，与 AuthorIDs/Visibilities 同时生效
type PostQuery struct {
	AuthorIDs    []string
	Visibilities []Visibility
	Scopes       []PostScope
	Sort         PostSort
	Offset       int
	Limit        int
}

func containsID(ids []primitive.ObjectID, id string) bool {
	for _, v := range ids {
		if v.Hex() == id {
			return true
		}
	}
	return false
}
