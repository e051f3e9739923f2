// Package models содержит доменные типы сервиса контроля доступа:
// пользователя, его роли и тарифный план подписки.
package models

import (
	"fmt"
	"slices"
	"strings"
)

// Role — роль пользователя.
type Role string

const (
	// RoleAdmin — администратор.
	RoleAdmin Role = "ADMIN"
	// RoleUser — обычный пользователь.
	RoleUser Role = "USER"
)

// ParseRole разбирает строку в Role, регистр не учитывается.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Roles — множество ролей. Хранится отсортированным и без дубликатов,
// поэтому два набора с одинаковыми ролями всегда равны.
type Roles []Role

// NewRoles строит нормализованное множество ролей.
func NewRoles(roles ...Role) Roles {
	out := make(Roles, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParseRoles разбирает список строк в множество ролей.
func ParseRoles(raw []string) (Roles, error) {
	roles := make([]Role, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		r, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return NewRoles(roles...), nil
}

// Has сообщает, входит ли роль в множество.
func (rs Roles) Has(role Role) bool {
	return slices.Contains(rs, role)
}

// Strings возвращает роли в виде строк (для claims и ответов API).
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// User представляет учётную запись из хранилища.
// Запись не кэшируется между запросами: смена плана или ролей видна при следующем чтении.
type User struct {
	ID           string           // Уникальный идентификатор пользователя
	Username     string           // Имя пользователя (уникальное)
	PasswordHash string           // bcrypt-хэш пароля
	Roles        Roles            // Роли пользователя
	Plan         SubscriptionPlan // Тарифный план подписки
}
