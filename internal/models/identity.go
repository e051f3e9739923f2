package models

import "time"

// Identity — проверенная личность запроса, восстановленная из токена.
// Роли берутся из claims и не перечитываются из хранилища.
type Identity struct {
	Username string `json:"username"`
	Roles    Roles  `json:"roles"`
}

// LoginEvent — событие аудита попытки входа.
type LoginEvent struct {
	Username   string    `json:"username"`
	Success    bool      `json:"success"`
	At         time.Time `json:"at"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// PlanChange — событие смены тарифного плана пользователя.
type PlanChange struct {
	Username string           `json:"username"`
	Plan     SubscriptionPlan `json:"plan"`
}
