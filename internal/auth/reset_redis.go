package auth

import (
	"context"
	"fmt"
	"time"

	"portfolio/internal/models"

	"github.com/redis/go-redis/v9"
)

// resetRetention - сколько запись о токене живет в Redis после истечения,
// чтобы на устаревшую ссылку отвечать "истек", а не "не найден".
const resetRetention = 24 * time.Hour

// consumeScript атомарно гасит токен. Ответ: {код, email}.
// Коды: 0 - нет токена, 1 - погашен, 2 - уже использован, 3 - истек.
var consumeScript = redis.NewScript(`
local data = redis.call('HMGET', KEYS[1], 'email', 'expires', 'used')
if not data[1] then
	return {0, ''}
end
if data[3] == '1' then
	return {2, ''}
end
if tonumber(ARGV[1]) > tonumber(data[2]) then
	return {3, ''}
end
redis.call('HSET', KEYS[1], 'used', '1')
return {1, data[1]}
`)

// RedisResetStore хранит токены сброса в Redis. Поведение совпадает с
// хранилищем в SQLite; используется, когда задан адрес Redis.
type RedisResetStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisResetStore(rdb *redis.Client, prefix string) *RedisResetStore {
	return &RedisResetStore{rdb: rdb, prefix: prefix}
}

func (s *RedisResetStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisResetStore) CreatePasswordReset(ctx context.Context, r *models.PasswordReset) error {
	r.CreatedAt = time.Now().UTC()
	ttl := time.Until(r.ExpiresAt) + resetRetention
	if ttl <= 0 {
		ttl = resetRetention
	}

	key := s.key(r.TokenHash)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Время в миллисекундах: числа Lua - double, наносекунды в них не помещаются.
		pipe.HSet(ctx, key, "email", r.Email, "expires", r.ExpiresAt.UnixMilli(), "used", "0")
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка записи токена сброса в redis: %w", err)
	}
	return nil
}

func (s *RedisResetStore) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	res, err := consumeScript.Run(ctx, s.rdb, []string{s.key(tokenHash)}, now.UnixMilli()).Slice()
	if err != nil {
		return "", fmt.Errorf("ошибка погашения токена сброса в redis: %w", err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("неожиданный ответ redis: %v", res)
	}
	code, _ := res[0].(int64)
	email, _ := res[1].(string)

	switch code {
	case 1:
		return email, nil
	case 2:
		return "", models.ErrTokenAlreadyUsed
	case 3:
		return "", models.ErrTokenExpired
	default:
		return "", models.ErrTokenInvalid
	}
}

func (s *RedisResetStore) ReleasePasswordReset(ctx context.Context, tokenHash string) error {
	key := s.key(tokenHash)
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ошибка чтения токена сброса в redis: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := s.rdb.HSet(ctx, key, "used", "0").Err(); err != nil {
		return fmt.Errorf("ошибка снятия погашения токена в redis: %w", err)
	}
	return nil
}
