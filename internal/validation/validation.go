// Package validation - чистые проверки входных данных. Ни одна функция не
// имеет побочных эффектов; решение об ответе клиенту принимает вызывающий код.
package validation

import (
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Пароль: не короче 8 байт и не длиннее 72 (предел bcrypt).
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var validate = validator.New()

// CheckRange - true, если длина value в символах попадает в [min, max].
// Пустое значение считается отсутствующим и не проходит.
func CheckRange(value string, min, max int) bool {
	if value == "" {
		return false
	}
	n := utf8.RuneCountInString(value)
	return n >= min && n <= max
}

// CheckEmail - структурная проверка адреса.
func CheckEmail(value string) bool {
	return validate.Var(value, "required,email") == nil
}

// CheckPassword - минимальная стойкость: длина и все четыре класса символов
// (строчные, заглавные, цифры, прочие).
func CheckPassword(value string) bool {
	if len(value) < MinPasswordLength || len(value) > MaxPasswordLength {
		return false
	}
	var lower, upper, digit, other bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
		default:
			other = true
		}
	}
	return lower && upper && digit && other
}

// Record - уникальные поля существующей записи. Secondary - email для
// пользователей, url для изображений и статей.
type Record struct {
	ID        int64
	Name      string
	Secondary string
}

// CheckUnique - true, если кандидат совпадает с записью по имени или по
// второму полю. Сравнение точное; пустые значения не совпадают ни с чем.
func CheckUnique(candidateName, candidateSecondary string, existing Record) bool {
	if candidateName != "" && candidateName == existing.Name {
		return true
	}
	return candidateSecondary != "" && candidateSecondary == existing.Secondary
}

// FindCollision ищет первую запись, с которой сталкивается кандидат.
// Запись с ID == skipID (обновляемая) пропускается.
func FindCollision(candidateName, candidateSecondary string, records []Record, skipID int64) (Record, bool) {
	for _, r := range records {
		if skipID != 0 && r.ID == skipID {
			continue
		}
		if CheckUnique(candidateName, candidateSecondary, r) {
			return r, true
		}
	}
	return Record{}, false
}
