package models

import "time"

// AppSetting is an opaque key/value configuration row. The workflow
// engine never interprets these; they exist for the administration UI
// (letter-number templates and similar).
type AppSetting struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
