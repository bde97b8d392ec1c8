package database

import (
	// Стандартные библиотеки
	"context"
	"database/sql" // Основной пакет для работы с SQL базами данных
	"errors"
	"fmt"
	"strings" // Для поиска подстроки в тексте ошибки (запасной путь)
	"time"

	"github.com/sirupsen/logrus"

	// Драйвер SQLite. Импорт регистрирует драйвер "sqlite" в database/sql,
	// а тип sqlite.Error нужен для распознавания нарушения UNIQUE.
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound - строка с таким ключом не существует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict - нарушено ограничение UNIQUE при фиксации.
	ErrConflict = errors.New("запись с такими данными уже существует")
)

// Store - хранилище записей поверх SQLite. Все методы безопасны для
// параллельного вызова: пул ограничен одним соединением.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
	now    func() time.Time
}

// Open открывает (или создает) файл БД, настраивает пул и создает таблицы.
func Open(dataSourceName string, logger *logrus.Logger) (*Store, error) {
	// Параметры SQLite в синтаксисе драйвера modernc:
	// - journal_mode(WAL): чтение не блокируется записью.
	// - busy_timeout(5000): ждать снятия блокировки до 5 секунд.
	// - foreign_keys(1): соблюдать внешние ключи.
	// - synchronous(NORMAL): компромисс между скоростью и надежностью.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)", dataSourceName)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии %s: %w", dataSourceName, err)
	}

	// Для SQLite - одно соединение: запись в один файл все равно последовательная.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения с %s: %w", dataSourceName, err)
	}

	s := &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	if err = s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при создании таблиц: %w", err)
	}

	logger.WithField("path", dataSourceName).Info("База данных готова")
	return s, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping проверяет соединение (для /healthz).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// createTables создает таблицы и индексы, если их еще нет.
// Уникальность имен, email и имен файлов обеспечивается на уровне БД:
// проверка в памяти перед записью не атомарна с самой записью.
func (s *Store) createTables() error {
	statements := []struct {
		name string
		sql  string
	}{
		{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			image TEXT UNIQUE,                 -- NULL, если аватар не загружен
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME NOT NULL
		);`},
		{"galleries", `
		CREATE TABLE IF NOT EXISTS galleries (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			author TEXT NOT NULL,
			cover_image_id INTEGER NULL,
			created_at DATETIME NOT NULL
		);`},
		{"images", `
		CREATE TABLE IF NOT EXISTS images (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			gallery_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);`},
		{"idx_images_gallery_id", `CREATE INDEX IF NOT EXISTS idx_images_gallery_id ON images (gallery_id);`},
		{"articles", `
		CREATE TABLE IF NOT EXISTS articles (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			text TEXT NOT NULL,
			image TEXT UNIQUE,
			alt TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`},
		{"idx_articles_category", `CREATE INDEX IF NOT EXISTS idx_articles_category ON articles (category);`},
		{"password_resets", `
		CREATE TABLE IF NOT EXISTS password_resets (
			token_hash TEXT NOT NULL PRIMARY KEY,
			email TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			used_at DATETIME NULL,
			created_at DATETIME NOT NULL
		);`},
		{"idx_password_resets_email", `CREATE INDEX IF NOT EXISTS idx_password_resets_email ON password_resets (email);`},
	}

	for _, st := range statements {
		if _, err := s.db.Exec(st.sql); err != nil {
			return fmt.Errorf("ошибка при создании %s: %w", st.name, err)
		}
	}
	return nil
}

// isUniqueViolation распознает нарушение UNIQUE / PRIMARY KEY.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mutationError оборачивает ошибку записи: нарушение уникальности -> ErrConflict.
func mutationError(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w (%v)", op, ErrConflict, err)
	}
	return fmt.Errorf("ошибка выполнения запроса %s: %w", op, err)
}

// expectOneRow превращает "ни одна строка не затронута" в ErrNotFound.
func expectOneRow(op string, res sql.Result) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения rowsAffected в %s: %w", op, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// nullIfEmpty - пустая строка пишется как NULL, чтобы UNIQUE не срабатывал
// на нескольких записях без файла.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
