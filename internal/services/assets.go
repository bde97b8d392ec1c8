package services

import (
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"portfolio/internal/config"
	"portfolio/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Kind - вид ресурса, у каждого своя папка хранения.
type Kind string

const (
	KindUsers    Kind = "users"
	KindImages   Kind = "images"
	KindArticles Kind = "articles"
)

// Kinds - все виды ресурсов с файлами.
var Kinds = []Kind{KindUsers, KindImages, KindArticles}

// HasThumbnails - для фотографий галерей и статей строятся миниатюры.
func (k Kind) HasThumbnails() bool {
	return k == KindImages || k == KindArticles
}

var (
	ErrEmptyUpload   = errors.New("пустой файл")
	ErrUploadTooBig  = errors.New("файл слишком большой")
	ErrNameCollision = errors.New("файл с таким именем уже существует")
)

// Upload - файл, принятый во временную папку и еще не перенесенный в хранилище.
type Upload struct {
	TempPath     string
	Ext          string
	OriginalName string
	Size         int64
}

// Manager связывает записи БД с файлами на диске: принимает загрузку,
// переносит ее в папку ресурса под сгенерированным именем, строит
// миниатюры и удаляет замененные файлы.
type Manager struct {
	cfg     config.StorageConfig
	allowed map[string]bool
	logger  *logrus.Logger
}

// NewManager создает менеджер и папки для всех видов ресурсов.
func NewManager(cfg config.StorageConfig, logger *logrus.Logger) (*Manager, error) {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "jpeg" {
			ext = "jpg"
		}
		allowed[ext] = true
	}

	m := &Manager{cfg: cfg, allowed: allowed, logger: logger}
	dirs := []string{cfg.Temp()}
	for _, kind := range Kinds {
		dirs = append(dirs, cfg.Dir(string(kind)))
	}
	for _, dir := range dirs {
		if err := EnsureDir(dir, logger); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// EnsureDir проверяет существование директории и создает ее со всеми
// родительскими, если ее нет. Путь, который существует, но не является
// директорией, - ошибка.
func EnsureDir(dirPath string, logger *logrus.Logger) error {
	if dirPath == "" {
		return errors.New("путь к директории не может быть пустым")
	}
	// Предотвращаем случайное использование корня или текущей директории
	if dirPath == "/" || dirPath == "." {
		return fmt.Errorf("небезопасный путь для создания директории: %s", dirPath)
	}

	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("не удалось создать папку %s: %w", dirPath, err)
		}
		logger.WithField("dir", dirPath).Info("Папка создана")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка при проверке папки %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("путь %s существует, но не является директорией", dirPath)
	}
	return nil
}

// Path - полный путь к хранимому файлу.
func (m *Manager) Path(kind Kind, storedName string) string {
	return filepath.Join(m.cfg.Dir(string(kind)), storedName)
}

// URL - публичный адрес хранимого файла; пустое имя - пустой адрес.
func (m *Manager) URL(kind Kind, storedName string) string {
	if storedName == "" {
		return ""
	}
	return path.Join(m.cfg.BaseURL, string(kind), storedName)
}

// ThumbnailName - имя миниатюры рядом с оригиналом: photo.jpg -> photo_thumb.jpg.
func (m *Manager) ThumbnailName(storedName string) string {
	ext := filepath.Ext(storedName)
	return strings.TrimSuffix(storedName, ext) + m.cfg.ThumbnailSuffix + ext
}

// GenerateName - имя для нового хранимого файла.
func (m *Manager) GenerateName(base, ext string) string {
	return GenerateName(base, ext)
}

// Stage проверяет загруженный файл по содержимому и сохраняет его во
// временную папку. Удалить временный файл обязан вызывающий код
// (DiscardTemp или Replace).
func (m *Manager) Stage(fileHeader *multipart.FileHeader) (upload *Upload, err error) {
	defer func() { metrics.RecordAsset("stage", "tmp", err) }()

	if fileHeader.Size == 0 {
		return nil, ErrEmptyUpload
	}
	if m.cfg.MaxUploadSize > 0 && fileHeader.Size > m.cfg.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d байт", ErrUploadTooBig, fileHeader.Size)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть загруженный файл: %w", err)
	}
	defer file.Close()

	ext, err := detectImageExtension(file)
	if err != nil {
		return nil, err
	}
	if !m.allowed[ext] {
		return nil, fmt.Errorf("%w: расширение %s не разрешено", ErrUnsupportedType, ext)
	}

	tmp, err := os.CreateTemp(m.cfg.Temp(), "upload-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	size, err := io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("не удалось записать временный файл: %w", err)
	}

	m.logger.WithFields(logrus.Fields{"original": fileHeader.Filename, "temp": tmp.Name(), "size": size}).Debug("Загрузка принята во временную папку")
	return &Upload{TempPath: tmp.Name(), Ext: ext, OriginalName: fileHeader.Filename, Size: size}, nil
}

// Materialize копирует временный файл в папку ресурса под generatedName и
// возвращает имя, которое нужно сохранить в записи. Существующий файл с тем
// же именем не перезаписывается. Временный файл остается на месте.
func (m *Manager) Materialize(tempPath, generatedName string, kind Kind) (storedName string, err error) {
	defer func() { metrics.RecordAsset("materialize", string(kind), err) }()

	if generatedName == "" || filepath.Base(generatedName) != generatedName {
		return "", fmt.Errorf("некорректное имя файла: %q", generatedName)
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("временный файл недоступен (%s): %w", tempPath, err)
	}
	defer src.Close()

	target := m.Path(kind, generatedName)
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNameCollision, target)
		}
		return "", fmt.Errorf("не удалось создать файл на сервере (%s): %w", target, err)
	}

	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Недописанный файл не должен остаться в хранилище
		os.Remove(target)
		return "", fmt.Errorf("не удалось скопировать файл в %s: %w", target, err)
	}

	m.logger.WithFields(logrus.Fields{"kind": kind, "file": generatedName}).Info("Файл сохранен в хранилище")
	return generatedName, nil
}

// DeriveThumbnail строит уменьшенную копию рядом с оригиналом.
// Ошибка не отменяет основную операцию, но должна быть сообщена.
func (m *Manager) DeriveThumbnail(kind Kind, storedName string) (thumbName string, err error) {
	defer func() { metrics.RecordAsset("thumbnail", string(kind), err) }()

	src, err := os.Open(m.Path(kind, storedName))
	if err != nil {
		return "", fmt.Errorf("не удалось открыть оригинал %s: %w", storedName, err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("не удалось декодировать изображение %s: %w", storedName, err)
	}

	thumbName = m.ThumbnailName(storedName)
	target := m.Path(kind, thumbName)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("не удалось создать миниатюру %s: %w", target, err)
	}

	err = encodeImage(out, scaleToWidth(img, m.cfg.ThumbnailWidth), format)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return "", fmt.Errorf("не удалось сохранить миниатюру %s: %w", target, err)
	}
	return thumbName, nil
}

// Retire удаляет хранимый файл и его миниатюру. Отсутствующий файл -
// не ошибка: повтор или прошлый частичный сбой могли уже его удалить.
func (m *Manager) Retire(kind Kind, storedName string) (err error) {
	if storedName == "" {
		return nil
	}
	defer func() { metrics.RecordAsset("retire", string(kind), err) }()

	names := []string{storedName}
	if kind.HasThumbnails() {
		names = append(names, m.ThumbnailName(storedName))
	}
	for _, name := range names {
		if rmErr := os.Remove(m.Path(kind, name)); rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.Join(err, fmt.Errorf("не удалось удалить %s: %w", name, rmErr))
		}
	}
	if err == nil {
		m.logger.WithFields(logrus.Fields{"kind": kind, "file": storedName}).Info("Файл удален из хранилища")
	}
	return err
}

// DiscardTemp удаляет временный файл загрузки.
func (m *Manager) DiscardTemp(upload *Upload) {
	if upload == nil || upload.TempPath == "" {
		return
	}
	if err := os.Remove(upload.TempPath); err != nil && !os.IsNotExist(err) {
		m.logger.WithError(err).WithField("temp", upload.TempPath).Warn("Не удалось удалить временный файл")
	}
}

// Replace проводит файл через жизненный цикл в безопасном порядке:
//
//  1. сгенерировать имя и перенести новый файл в хранилище;
//  2. построить миниатюру (ошибка только логируется);
//  3. сохранить запись, указывающую на новое имя (persist);
//  4. только после успеха удалить старый файл.
//
// Старый файл никогда не удаляется до фиксации записи. Если persist
// вернул ошибку, запись по-прежнему указывает на старый, существующий
// файл, а новый удаляется (по возможности). Без upload persist вызывается
// со старым именем, файлы не трогаются. Временный файл удаляется всегда.
func (m *Manager) Replace(kind Kind, upload *Upload, base, oldName string, persist func(storedName string) error) (string, error) {
	if upload == nil {
		if err := persist(oldName); err != nil {
			return "", err
		}
		return oldName, nil
	}
	defer m.DiscardTemp(upload)

	storedName, err := m.Materialize(upload.TempPath, m.GenerateName(base, upload.Ext), kind)
	if err != nil {
		return "", err
	}

	if kind.HasThumbnails() {
		if _, err := m.DeriveThumbnail(kind, storedName); err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{"kind": kind, "file": storedName}).Warn("Миниатюра не построена")
		}
	}

	if err := persist(storedName); err != nil {
		if rmErr := m.Retire(kind, storedName); rmErr != nil {
			m.logger.WithError(rmErr).WithField("file", storedName).Warn("Осиротевший файл остался в хранилище")
		}
		return "", err
	}

	if oldName != "" && oldName != storedName {
		if err := m.Retire(kind, oldName); err != nil {
			// Запись уже указывает на новый файл, старый просто осиротел
			m.logger.WithError(err).WithFields(logrus.Fields{"kind": kind, "file": oldName}).Warn("Не удалось удалить замененный файл")
		}
	}
	return storedName, nil
}
