package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultEmailCodeTTL = 10 * time.Minute
	emailVerifyPrefix   = "email:code:verify"
)

// 比对成功才删除，保证验证码只能使用一次
var consumeScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then
  return 0
end
if val ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

type EmailCodeRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEmailCodeRepository(client *redis.Client) *EmailCodeRepository {
	return &EmailCodeRepository{client: client, ttl: DefaultEmailCodeTTL}
}

func codeKey(userID string) string {
	return fmt.Sprintf("%s:%s", emailVerifyPrefix, userID)
}

func (r *EmailCodeRepository) TTL() time.Duration {
	return r.ttl
}

// Save 覆盖写入验证码
func (r *EmailCodeRepository) Save(ctx context.Context, userID, code string) error {
	return r.client.Set(ctx, codeKey(userID), code, r.ttl).Err()
}

// Consume 校验并一次性删除
func (r *EmailCodeRepository) Consume(ctx context.Context, userID, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, r.client, []string{codeKey(userID)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
