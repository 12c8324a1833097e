package models

import (
	"time"
)

// ContactStats is the durable telemetry row for one contact. Upserted by handle.
type ContactStats struct {
	ID                 uint      `json:"-" gorm:"primaryKey"`
	Handle             string    `json:"handle" gorm:"uniqueIndex;size:255;not null"`
	Replied            bool      `json:"replied" gorm:"default:false"`
	MessageCount       int       `json:"message_count" gorm:"default:0"`
	SensitiveInfoSent  bool      `json:"sensitive_info_sent" gorm:"default:false"`
	InitialMessageSent bool      `json:"initial_message_sent" gorm:"default:false"`
	Qualification      *string   `json:"qualification,omitempty" gorm:"size:50"`
	Summary            *string   `json:"summary,omitempty" gorm:"type:text"`
	MonthlyBudget      *int      `json:"monthly_budget,omitempty"`
	ConsultationAgreed *bool     `json:"consultation_agreed,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (ContactStats) TableName() string { return "contact_stats" }

// StatsUpdate carries the fields one writer owns. Nil fields are left untouched
// on conflict, so writers with disjoint field sets never clobber each other.
type StatsUpdate struct {
	Handle             string
	Replied            *bool
	MessageCount       *int
	SensitiveInfoSent  *bool
	InitialMessageSent *bool
	Qualification      *string
	Summary            *string
	MonthlyBudget      *int
	ConsultationAgreed *bool
}

// Apply merges the non-nil fields of u into s.
func (u StatsUpdate) Apply(s *ContactStats) {
	s.Handle = u.Handle
	if u.Replied != nil {
		s.Replied = *u.Replied
	}
	if u.MessageCount != nil {
		s.MessageCount = *u.MessageCount
	}
	if u.SensitiveInfoSent != nil {
		s.SensitiveInfoSent = *u.SensitiveInfoSent
	}
	if u.InitialMessageSent != nil {
		s.InitialMessageSent = *u.InitialMessageSent
	}
	if u.Qualification != nil {
		v := *u.Qualification
		s.Qualification = &v
	}
	if u.Summary != nil {
		v := *u.Summary
		s.Summary = &v
	}
	if u.MonthlyBudget != nil {
		v := *u.MonthlyBudget
		s.MonthlyBudget = &v
	}
	if u.ConsultationAgreed != nil {
		v := *u.ConsultationAgreed
		s.ConsultationAgreed = &v
	}
}

// Columns returns the contact_stats column names set by u.
func (u StatsUpdate) Columns() []string {
	var cols []string
	if u.Replied != nil {
		cols = append(cols, "replied")
	}
	if u.MessageCount != nil {
		cols = append(cols, "message_count")
	}
	if u.SensitiveInfoSent != nil {
		cols = append(cols, "sensitive_info_sent")
	}
	if u.InitialMessageSent != nil {
		cols = append(cols, "initial_message_sent")
	}
	if u.Qualification != nil {
		cols = append(cols, "qualification")
	}
	if u.Summary != nil {
		cols = append(cols, "summary")
	}
	if u.MonthlyBudget != nil {
		cols = append(cols, "monthly_budget")
	}
	if u.ConsultationAgreed != nil {
		cols = append(cols, "consultation_agreed")
	}
	return cols
}

// StatsSummary holds the campaign-wide dashboard figures.
type StatsSummary struct {
	MessagesSent   int64   `json:"messages_sent"`
	DialogsStarted int64   `json:"dialogs_started"`
	ContactsShared int64   `json:"contacts_shared"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Bool and Int return pointers for StatsUpdate literals.
func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }

func String(v string) *string { return &v }
