// Package storage содержит общие ошибки хранилищ учётных записей.
// Реализации лежат в подпакетах memory и postgresql.
package storage

import "errors"

var (
	// ErrUserNotFound возвращается, если пользователя с таким username нет.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists возвращается при попытке создать пользователя с занятым username.
	ErrUserExists = errors.New("user already exists")
)
