package models

import (
	// Стандартные библиотеки
	"database/sql" // sql.NullTime для used_at токена сброса
	"errors"
	"time"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Ошибки токена сброса пароля. Возвращаются любым хранилищем токенов,
// поэтому живут здесь, а не в пакете конкретной реализации.
var (
	ErrTokenInvalid     = errors.New("токен сброса не найден")
	ErrTokenExpired     = errors.New("срок действия токена сброса истек")
	ErrTokenAlreadyUsed = errors.New("токен сброса уже использован")
)

// User представляет пользователя в системе.
// Поля структуры соответствуют столбцам в таблице 'users'.
// `json:"-"` - хеш пароля никогда не уходит клиенту.
type User struct {
	ID           int64     `json:"id"`         // Уникальный идентификатор (Primary Key)
	Name         string    `json:"name"`       // Имя (UNIQUE)
	Email        string    `json:"email"`      // Email (UNIQUE)
	Image        string    `json:"image"`      // Имя сохраненного файла аватара (UNIQUE, может быть пустым)
	PasswordHash string    `json:"-"`          // bcrypt-хеш пароля
	Role         string    `json:"role"`       // user / admin
	CreatedAt    time.Time `json:"created_at"` // Время регистрации
}

// Avatar - публичное представление пользователя.
type Avatar struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`
}

// Avatar возвращает публичную часть профиля.
func (u *User) Avatar() Avatar {
	return Avatar{Name: u.Name, Image: u.Image, Role: u.Role}
}

// Image - фотография в галерее. URL - имя сохраненного файла.
type Image struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`        // Название (UNIQUE среди всех изображений)
	URL         string    `json:"url"`         // Имя файла в папке images (UNIQUE)
	Description string    `json:"description"` // Описание
	GalleryID   int64     `json:"gallery"`     // Галерея, к которой относится изображение
	CreatedAt   time.Time `json:"created_at"`
}

// Gallery группирует изображения. Cover вычисляется при чтении:
// выбранное изображение, иначе первое в галерее.
type Gallery struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Author       string    `json:"author"`
	CoverImageID *int64    `json:"cover_image_id,omitempty"`
	Cover        string    `json:"cover"`
	CreatedAt    time.Time `json:"created_at"`
}

// Article - статья блога.
type Article struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Image     string    `json:"image"` // Имя файла в папке articles (может быть пустым)
	Alt       string    `json:"alt"`
	URL       string    `json:"url"` // Slug статьи (UNIQUE)
	Category  string    `json:"category"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PasswordReset - одноразовый токен сброса пароля.
// Хранится только SHA-256 от токена; сам токен есть только в письме.
type PasswordReset struct {
	TokenHash string
	Email     string
	ExpiresAt time.Time
	UsedAt    sql.NullTime // NULL, пока токен не погашен
	CreatedAt time.Time
}
