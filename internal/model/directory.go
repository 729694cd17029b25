package model

import "time"

// Provider врач, владеющий календарём слотов
type Provider struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialty      string `json:"specialty"`
	TimeZone       string `json:"time_zone"` // IANA, например America/Argentina/Buenos_Aires
	TelegramChatID int64  `json:"telegram_chat_id"`
	Active         bool   `json:"active"`
}

// Location часовой пояс врача; при ошибке - UTC
func (p *Provider) Location() *time.Location {
	if p == nil || p.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Study вид исследования/услуги
type Study struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	Price            int    `json:"price"` // в центах
	Active           bool   `json:"active"`
	PrepInstructions string `json:"prep_instructions"`
}
