package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword принимает пароль в виде строки и возвращает его bcrypt-хеш.
// Используем bcrypt.DefaultCost - рекомендуемое значение по умолчанию.
// Пароль длиннее 72 байт bcrypt отвергает, до этого его должна отсечь валидация.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash сравнивает хеш из БД с введенным паролем.
// Соль встроена в сам bcrypt-хеш.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// burnPasswordCheck выполняет сравнение с заведомо чужим хешем, чтобы вход
// с неизвестным email занимал столько же времени, сколько с неверным паролем.
func burnPasswordCheck(password string) {
	dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("no-such-user-password"), bcrypt.DefaultCost)
		if err == nil {
			dummyHash = string(h)
		}
	})
	CheckPasswordHash(password, dummyHash)
}
