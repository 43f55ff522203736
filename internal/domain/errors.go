package domain

import "errors"

// Репозитории возвращают эти ошибки вместо sql.ErrNoRows, чтобы сервисный
// слой не зависел от database/sql.
var (
	ErrNotFound       = errors.New("not found")
	ErrNoRowsAffected = errors.New("no rows affected")
)
