package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// UserService 账号、资料与搜索
type UserService struct {
	users     UserStore
	follows   FollowGraph
	sessions  SessionStore
	tokens    *pkg.TokenIssuer
	email     *EmailService
	secondary *Secondary
	logger    *zap.Logger
	now       func() time.Time
}

func NewUserService(d Deps) *UserService {
	return &UserService{
		users:     d.Users,
		follows:   d.Follows,
		sessions:  d.Sessions,
		tokens:    d.Tokens,
		email:     NewEmailService(d),
		secondary: NewSecondary(d),
		logger:    d.logger(),
		now:       d.clock(),
	}
}

type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// AuthResult 登录类接口的返回
type AuthResult struct {
	User   *model.User `json:"user"`
	Tokens *pkg.Pair   `json:"tokens"`
	Graph  *BestEffort `json:"-"`
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", pkg.Invalid("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", pkg.Internal("hash password", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register 注册：文档库写入成功即成功，图库节点、验证邮件尽力而为
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || strings.TrimSpace(in.Name) == "" {
		return nil, pkg.Invalid("name, username and email are required")
	}
	if err := s.ensureFree(ctx, email, username); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &model.User{
		Name:      strings.TrimSpace(in.Name),
		Username:  username,
		Email:     email,
		Password:  hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, pkg.Conflict("email or username already registered")
		}
		return nil, pkg.Internal("create user", err)
	}
	node := u.Node()
	graph := s.secondary.Apply(ctx, model.GraphOp{Kind: model.OpUpsertUser, FromID: node.ID, Node: &node})

	res, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	res.Graph = &graph
	s.email.sendBestEffort(ctx, node.ID, email)
	return res, nil
}

func (s *UserService) ensureFree(ctx context.Context, email, username string) error {
	if email != "" {
		_, err := s.users.FindActiveByEmail(ctx, email)
		if err == nil {
			return pkg.Conflict("email already registered")
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return pkg.Internal("check email", err)
		}
	}
	if username != "" {
		_, err := s.users.FindActiveByUsername(ctx, username)
		if err == nil {
			return pkg.Conflict("username already taken")
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return pkg.Internal("check username", err)
		}
	}
	return nil
}

// issue 签发令牌并写入会话
func (s *UserService) issue(ctx context.Context, u *model.User) (*AuthResult, error) {
	pair, err := s.tokens.GeneratePair(u.ID.Hex())
	if err != nil {
		return nil, pkg.Internal("generate tokens", err)
	}
	if err = s.sessions.Save(ctx, u.ID.Hex(), pair.AccessToken, s.tokens.AccessTTL); err != nil {
		return nil, pkg.Unavailable("session store unavailable", err)
	}
	return &AuthResult{User: u, Tokens: pair}, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindActiveByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// 密码正确才提示已注销，否则与不存在的账号无法区分
		if d, derr := s.users.FindDeletedByEmail(ctx, email); derr == nil && checkPassword(d.Password, password) {
			return nil, pkg.Forbidden("account deactivated")
		}
		return nil, pkg.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, pkg.Internal("find user", err)
	}
	if !checkPassword(u.Password, password) {
		return nil, pkg.Unauthorized("invalid email or password")
	}
	if !u.IsActive {
		return nil, pkg.Forbidden("account deactivated")
	}
	return s.issue(ctx, u)
}

// Refresh 用 refresh token 换新令牌对
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, pkg.Unauthorized(err.Error())
	}
	u, err := s.users.FindActiveByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, pkg.Unauthorized("user no longer active")
		}
		return nil, pkg.Internal("find user", err)
	}
	res, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return pkg.Unavailable("session store unavailable", err)
	}
	return nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.FindActiveByID(ctx, userID)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	return u, nil
}

func (s *UserService) VerifyEmail(ctx context.Context, userID, code string) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return pkg.InvalidState("email already verified")
	}
	ok, err := s.email.VerifyCode(ctx, userID, code)
	if err != nil {
		return pkg.Unavailable("verification code store unavailable", err)
	}
	if !ok {
		return pkg.Invalid("invalid or expired verification code")
	}
	if err = s.users.MarkEmailVerified(ctx, userID); err != nil {
		return docErr(err, "user not found")
	}
	return nil
}

func (s *UserService) ResendVerification(ctx context.Context, userID string) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return pkg.InvalidState("email already verified")
	}
	if err = s.email.SendVerifyCode(ctx, userID, u.Email); err != nil {
		return pkg.Unavailable("send verification email", err)
	}
	return nil
}

// DeleteAccount 软删除账号，图库节点连同关系一起删除
func (s *UserService) DeleteAccount(ctx context.Context, userID, password string) (BestEffort, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return BestEffort{}, err
	}
	if !checkPassword(u.Password, password) {
		return BestEffort{}, pkg.Unauthorized("password is incorrect")
	}
	if err = s.users.SoftDelete(ctx, userID, s.now()); err != nil {
		return BestEffort{}, docErr(err, "user not found")
	}
	graph := s.secondary.Apply(ctx, model.GraphOp{Kind: model.OpDeleteUser, FromID: userID})
	if err = s.sessions.Delete(detach(ctx), userID); err != nil {
		s.logger.Warn("drop session failed", zap.String("user", userID), zap.Error(err))
	}
	return graph, nil
}

// RestoreAccount 恢复软删除的账号，重建图库节点（原有关系不恢复）
func (s *UserService) RestoreAccount(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindDeletedByEmail(ctx, email)
	if err != nil {
		return nil, docErr(err, "no deactivated account for this email")
	}
	if !checkPassword(u.Password, password) {
		return nil, pkg.Unauthorized("invalid email or password")
	}
	if err = s.ensureFree(ctx, u.Email, u.Username); err != nil {
		return nil, err
	}
	if err = s.users.Restore(ctx, u.ID.Hex()); err != nil {
		return nil, docErr(err, "no deactivated account for this email")
	}
	u.DeletedAt = nil
	u.IsActive = true
	node := u.Node()
	graph := s.secondary.Apply(ctx, model.GraphOp{Kind: model.OpUpsertUser, FromID: node.ID, Node: &node})
	res, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	res.Graph = &graph
	return res, nil
}

type Profile struct {
	*model.User
	IsFollowing bool `json:"isFollowing"`
	IsSelf      bool `json:"isSelf"`
}

// Profile 用户主页，图库不可用时 isFollowing 视为 false
func (s *UserService) Profile(ctx context.Context, targetID, viewerID string) (*Profile, error) {
	u, err := s.Me(ctx, targetID)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: u, IsSelf: targetID == viewerID}
	if viewerID != "" && !p.IsSelf {
		ok, err := s.follows.IsFollowing(ctx, viewerID, targetID)
		if err != nil {
			s.logger.Warn("profile follow check failed", zap.String("viewer", viewerID), zap.Error(err))
		}
		p.IsFollowing = ok
	}
	return p, nil
}

// UpdateProfile 更新资料，并把用户名等同步到图库节点
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error) {
	if upd.Empty() {
		return nil, pkg.Invalid("nothing to update")
	}
	cur, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return nil, pkg.Invalid("username cannot be empty")
		}
		upd.Username = &name
		if name != cur.Username {
			if err = s.ensureFree(ctx, "", name); err != nil {
				return nil, err
			}
		}
	}
	u, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, pkg.Conflict("username already taken")
		}
		return nil, docErr(err, "user not found")
	}
	if upd.Username != nil || upd.Name != nil {
		node := u.Node()
		s.secondary.Apply(ctx, model.GraphOp{Kind: model.OpUpsertUser, FromID: node.ID, Node: &node})
	}
	return u, nil
}

// ChangePassword 修改密码后强制重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(u.Password, oldPassword) {
		return pkg.Unauthorized("old password is incorrect")
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err = s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return docErr(err, "user not found")
	}
	return s.Logout(ctx, userID)
}

// Search 用户名/昵称模糊搜索
func (s *UserService) Search(ctx context.Context, keyword, viewerID string, p pkg.Page) (*UserPage, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, pkg.Invalid("search keyword required")
	}
	users, total, err := s.users.Search(ctx, keyword, p.Offset(), p.Limit)
	if err != nil {
		return nil, pkg.Internal("search users", err)
	}
	var following map[string]struct{}
	if viewerID != "" {
		ids, err := s.follows.FollowingIDs(ctx, viewerID)
		if err != nil {
			s.logger.Warn("load viewer following failed", zap.String("viewer", viewerID), zap.Error(err))
		}
		following = idSet(ids)
	}
	items := make([]UserItem, 0, len(users))
	for i := range users {
		_, ok := following[users[i].ID.Hex()]
		items = append(items, UserItem{UserBrief: users[i].Brief(), IsFollowing: ok})
	}
	return &UserPage{Users: items, Pagination: p.Of(total)}, nil
}
