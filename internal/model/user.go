package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCounter 用户文档上的反规范化计数字段
type UserCounter string

const (
	CounterFollowers UserCounter = "followersCount"
	CounterFollowing UserCounter = "followingCount"
	CounterPosts     UserCounter = "postsCount"
)

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Username       string             `bson:"username" json:"username"`
	Email          string             `bson:"email" json:"email"`
	Password       string             `bson:"password" json:"-"`
	Bio            string             `bson:"bio" json:"bio"`
	Avatar         string             `bson:"avatar" json:"avatar"`
	FollowersCount int64              `bson:"followersCount" json:"followersCount"`
	FollowingCount int64              `bson:"followingCount" json:"followingCount"`
	PostsCount     int64              `bson:"postsCount" json:"postsCount"`
	IsVerified     bool               `bson:"isVerified" json:"isVerified"`
	EmailVerified  bool               `bson:"emailVerified" json:"emailVerified"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	DeletedAt      *time.Time         `bson:"deletedAt" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsDeleted 是否已软删除
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Node 图库中的用户投影
func (u *User) Node() UserNode {
	return UserNode{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
	}
}

// Brief 列表中展示的用户摘要
func (u *User) Brief() UserBrief {
	return UserBrief{
		ID:             u.ID.Hex(),
		Name:           u.Name,
		Username:       u.Username,
		Avatar:         u.Avatar,
		Bio:            u.Bio,
		IsVerified:     u.IsVerified,
		FollowersCount: u.FollowersCount,
	}
}

// FollowCounts 关注/粉丝数
type FollowCounts struct {
	Following int64
	Followers int64
}

// FollowCounts 文档上记录的关注/粉丝数
func (u *User) FollowCounts() FollowCounts {
	return FollowCounts{Following: u.FollowingCount, Followers: u.FollowersCount}
}

type UserNode struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type UserBrief struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Avatar         string `json:"avatar"`
	Bio            string `json:"bio,omitempty"`
	IsVerified     bool   `json:"isVerified"`
	FollowersCount int64  `json:"followersCount"`
}

// ProfileUpdate 资料更新，nil 字段不修改
type ProfileUpdate struct {
	Name     *string
	Username *string
	Bio      *string
	Avatar   *string
}

// Empty 没有任何需要更新的字段
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Username == nil && p.Bio == nil && p.Avatar == nil
}
