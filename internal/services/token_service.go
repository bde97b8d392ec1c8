package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 48

// GenerateSecureToken возвращает length случайных байт в URL-safe base64 без '='.
func GenerateSecureToken(length int) (string, error) {
	// Создаем срез байт нужной длины
	b := make([]byte, length)
	// Читаем случайные байты из криптографического источника ОС
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("не удалось сгенерировать случайные байты: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// cyrillic - транслитерация строчной кириллицы в латиницу.
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'і': "i", 'ї': "yi", 'є': "ye", 'ґ': "g",
}

func transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if lat, ok := cyrillic[r]; ok {
			b.WriteString(lat)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Slugify переводит строку в ASCII slug: "Über Alpen 2024" -> "uber-alpen-2024",
// "Осенний лес" -> "osenniy-les". Кириллица транслитерируется, прочие символы
// без латинского эквивалента отбрасываются; результат может быть пустым.
func Slugify(s string) string {
	lower := transliterate(strings.ToLower(s))
	// transform.Chain хранит состояние, поэтому создается на каждый вызов.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, lower)
	if err != nil {
		folded = lower
	}

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// GenerateName строит имя хранимого файла: {slug}-{unix ms}-{8 hex}.{ext}.
// Случайный суффикс исключает совпадение при загрузках в одну миллисекунду.
func GenerateName(base, ext string) string {
	slug := Slugify(base)
	if slug == "" {
		slug = "asset"
	}
	return fmt.Sprintf("%s.%s", UniqueSlug(slug), strings.TrimPrefix(ext, "."))
}

// UniqueSlug дописывает к prefix метку времени и случайный суффикс: {prefix}-{unix ms}-{8 hex}.
func UniqueSlug(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
