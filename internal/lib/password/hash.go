// Package password реализует хэширование и проверку паролей на bcrypt.
//
// GetHash создаёт bcrypt-хэш для хранения, Matches сравнивает введённый пароль с хэшем.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе — ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Bcrypt — проверка пароля для сервиса аутентификации.
type Bcrypt struct{}

// Matches сообщает, соответствует ли plain хэшу. Повреждённый хэш считается несовпадением.
func (Bcrypt) Matches(plain, hash string) bool {
	return CompareHash(hash, plain) == nil
}
