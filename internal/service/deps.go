package service

import (
	"context"
	"errors"
	"time"

	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository"

	"go.uber.org/zap"
)

// Deps 服务层依赖，由入口装配后注入
type Deps struct {
	Users    UserStore
	Posts    PostStore
	Comments CommentStore
	Stories  StoryStore
	Requests FriendRequestStore

	UserGraph UserGraph
	Follows   FollowGraph
	Friends   FriendGraph

	Repair        RepairQueue
	Notifier      Notifier
	// NotifyTimeout 请求等待事件投递的上限
	NotifyTimeout time.Duration

	Sessions SessionStore
	Codes    CodeStore
	Mailer   MailSender
	Tokens   *pkg.TokenIssuer

	Logger *zap.Logger
	Now    func() time.Time
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

// docErr 文档库错误：不存在映射为 NotFound，其余按内部错误上抛
func docErr(err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return pkg.NotFound(notFound)
	}
	return pkg.Internal("document store", err)
}

// graphErr 图库为决定性写入时的错误
func graphErr(err error) error {
	return pkg.Unavailable("graph store unavailable", err)
}

// detach 派生写入不随请求取消而中断
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
