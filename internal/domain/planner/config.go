package planner

import "time"

// Config holds runtime knobs for the planner service.
type Config struct {
	Location            *time.Location
	SearchLimit         int
	KeepPOIs            int
	MaxTravelTimePerDay int
	DefaultDays         int
	DefaultPace         string
	SessionTTL          time.Duration
	SummaryTokenBudget  int
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 50
	}
	if c.KeepPOIs <= 0 {
		c.KeepPOIs = 40
	}
	if c.MaxTravelTimePerDay <= 0 {
		c.MaxTravelTimePerDay = 120
	}
	if c.DefaultDays <= 0 {
		c.DefaultDays = 3
	}
	if c.DefaultPace == "" {
		c.DefaultPace = "moderate"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.SummaryTokenBudget <= 0 {
		c.SummaryTokenBudget = 600
	}
	return c
}
