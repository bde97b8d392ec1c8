package services

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// ErrUnsupportedType - файл не является изображением разрешенного типа.
var ErrUnsupportedType = errors.New("недопустимый тип файла")

// imageExtensions - MIME-тип, определенный по содержимому, -> расширение файла.
var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// detectImageExtension определяет реальный тип файла по первым 512 байтам
// и возвращает указатель чтения в начало.
func detectImageExtension(file io.ReadSeeker) (string, error) {
	buffer := make([]byte, 512)
	_, err := file.Read(buffer)
	if err != nil && err != io.EOF { // EOF не ошибка, если файл меньше 512 байт
		return "", fmt.Errorf("не удалось прочитать первые 512 байт файла: %w", err)
	}
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("не удалось вернуть указатель файла в начало: %w", err)
	}

	contentType := http.DetectContentType(buffer)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	// Проверяем, что заголовок изображения действительно разбирается.
	if _, _, err := image.DecodeConfig(file); err != nil {
		return "", fmt.Errorf("%w: не удалось разобрать заголовок изображения: %v", ErrUnsupportedType, err)
	}
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("не удалось вернуть указатель файла в начало: %w", err)
	}
	return ext, nil
}

// scaleToWidth уменьшает изображение до ширины width с сохранением пропорций.
// Изображения уже меньше width не увеличиваются.
func scaleToWidth(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	if width <= 0 || bounds.Dx() <= width {
		return src
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// encodeImage кодирует изображение в исходном формате.
func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("неизвестный формат изображения: %s", format)
	}
}
