package models

import (
	"fmt"
	"strings"
	"time"
)

// SubscriptionPlan — тарифный план, определяющий лимит запросов.
type SubscriptionPlan string

const (
	PlanFree         SubscriptionPlan = "FREE"
	PlanBasic        SubscriptionPlan = "BASIC"
	PlanProfessional SubscriptionPlan = "PROFESSIONAL"
)

// ParsePlan разбирает строку в SubscriptionPlan, регистр не учитывается.
func ParsePlan(s string) (SubscriptionPlan, error) {
	p := SubscriptionPlan(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := planPolicies[p]; !ok {
		return "", fmt.Errorf("unknown subscription plan %q", s)
	}
	return p, nil
}

// RateLimitPolicy описывает корзину токенов для плана.
type RateLimitPolicy struct {
	Capacity     int           // Максимум токенов в корзине
	RefillAmount int           // Сколько токенов добавляется за интервал
	RefillPeriod time.Duration // Длина интервала пополнения
}

// planPolicies — единственный источник лимитов: политика зависит только от плана.
var planPolicies = map[SubscriptionPlan]RateLimitPolicy{
	PlanFree:         {Capacity: 2, RefillAmount: 1, RefillPeriod: time.Minute},
	PlanBasic:        {Capacity: 40, RefillAmount: 40, RefillPeriod: time.Hour},
	PlanProfessional: {Capacity: 100, RefillAmount: 100, RefillPeriod: time.Hour},
}

// Policy возвращает политику плана. ok == false для неизвестного плана.
func (p SubscriptionPlan) Policy() (RateLimitPolicy, bool) {
	policy, ok := planPolicies[p]
	return policy, ok
}

// Plans возвращает все известные планы.
func Plans() []SubscriptionPlan {
	return []SubscriptionPlan{PlanFree, PlanBasic, PlanProfessional}
}
