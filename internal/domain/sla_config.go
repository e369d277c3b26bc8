package domain

import (
	"errors"
	"fmt"
	"time"
)

// SLAConfig holds the deadline minutes for one priority.
type SLAConfig struct {
	ID                   string
	Priority             TicketPriority
	FirstResponseMinutes int
	ResolutionMinutes    int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MaxSLAMinutes caps a deadline at one year.
const MaxSLAMinutes = 366 * 24 * 60

// FallbackPriority is used when a priority has no configuration of its own.
const FallbackPriority = TicketPriorityMedium

// Validate checks the configured minutes.
func (c SLAConfig) Validate() error {
	if !c.Priority.Valid() {
		return errors.New("unknown priority")
	}
	if c.FirstResponseMinutes <= 0 || c.ResolutionMinutes <= 0 {
		return errors.New("deadline minutes must be positive")
	}
	if c.FirstResponseMinutes > MaxSLAMinutes || c.ResolutionMinutes > MaxSLAMinutes {
		return fmt.Errorf("deadline minutes must not exceed %d", MaxSLAMinutes)
	}
	if c.ResolutionMinutes < c.FirstResponseMinutes {
		return errors.New("resolution minutes must not be shorter than first response minutes")
	}
	return nil
}

// FirstResponseDeadline returns when a ticket created at createdAt must have been answered.
func (c SLAConfig) FirstResponseDeadline(createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(c.FirstResponseMinutes) * time.Minute)
}

// ResolutionDeadline returns when a ticket created at createdAt must have been closed.
func (c SLAConfig) ResolutionDeadline(createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(c.ResolutionMinutes) * time.Minute)
}

// SLAConfigSet indexes configuration rows by priority.
type SLAConfigSet map[TicketPriority]SLAConfig

// NewSLAConfigSet builds a set from stored rows.
func NewSLAConfigSet(configs []SLAConfig) SLAConfigSet {
	set := make(SLAConfigSet, len(configs))
	for _, cfg := range configs {
		set[cfg.Priority] = cfg
	}
	return set
}

// Resolve returns the exact match, falling back to the medium row.
func (s SLAConfigSet) Resolve(priority TicketPriority) (SLAConfig, bool) {
	if cfg, ok := s[priority]; ok {
		return cfg, true
	}
	cfg, ok := s[FallbackPriority]
	return cfg, ok
}
