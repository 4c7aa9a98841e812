package service

import (
	"context"
	"errors"

	"Lee_Social/internal/pkg"

	"go.uber.org/zap"
)

var errMailDisabled = errors.New("mail sender not configured")

// EmailService 邮箱验证码：生成、存储、发送
type EmailService struct {
	codes  CodeStore
	mailer MailSender
	logger *zap.Logger
}

func NewEmailService(d Deps) *EmailService {
	return &EmailService{codes: d.Codes, mailer: d.Mailer, logger: d.logger()}
}

// SendVerifyCode 先写入验证码再发信，发信失败验证码自然过期
func (s *EmailService) SendVerifyCode(ctx context.Context, userID, email string) error {
	if s.codes == nil || s.mailer == nil {
		return errMailDisabled
	}
	code, err := pkg.NewCode()
	if err != nil {
		return err
	}
	if err = s.codes.Save(ctx, userID, code); err != nil {
		return err
	}
	html := pkg.EmailCodeHTML("email verification", code, s.codes.TTL())
	return s.mailer.Send(email, "Verify your email", html)
}

// VerifyCode 校验验证码，成功后删除
func (s *EmailService) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	if s.codes == nil {
		return false, errMailDisabled
	}
	return s.codes.Consume(ctx, userID, code)
}

// sendBestEffort 注册等流程中的发信不影响主流程
func (s *EmailService) sendBestEffort(ctx context.Context, userID, email string) {
	if err := s.SendVerifyCode(detach(ctx), userID, email); err != nil {
		s.logger.Warn("send verification email failed", zap.String("user", userID), zap.Error(err))
	}
}
