package models

import "time"

// Macro event names.
const (
	EventPayroll      = "Payroll"
	EventCPI          = "CPI"
	EventPCE          = "PCE"
	EventRateDecision = "Rate decision"
)

// MacroEvent is an estimated release date of a scheduled macro publication.
type MacroEvent struct {
	Name         string    `json:"name"`
	Date         time.Time `json:"date"`
	ImpactWeight int       `json:"impact_weight"`
}

// Alert is a macro event falling inside the alert window.
type Alert struct {
	Event     MacroEvent `json:"event"`
	DaysUntil int        `json:"days_until"`
	Guidance  string     `json:"guidance"`
	Message   string     `json:"message"`
}
