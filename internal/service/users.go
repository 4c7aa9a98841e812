package service

import (
	"context"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
)

// UserItem 带当前访问者关注状态的用户摘要
type UserItem struct {
	model.UserBrief
	IsFollowing bool `json:"isFollowing"`
}

type UserPage struct {
	Users      []UserItem     `json:"users"`
	Pagination pkg.Pagination `json:"pagination"`
}

// loadUsers 按 ids 顺序返回活跃用户，已删除或不存在的跳过
func loadUsers(ctx context.Context, store UserStore, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	found, err := store.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkg.Internal("load users", err)
	}
	byID := make(map[string]model.User, len(found))
	for _, u := range found {
		byID[u.ID.Hex()] = u
	}
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func briefs(users []model.User) []model.UserBrief {
	out := make([]model.UserBrief, 0, len(users))
	for i := range users {
		out = append(out, users[i].Brief())
	}
	return out
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
