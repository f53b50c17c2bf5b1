package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tablebook/internal/hours"
	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

// TableSetup describes one table in setup.yaml.
type TableSetup struct {
	Number      string `yaml:"number"`
	MinCapacity int    `yaml:"min_capacity"`
	MaxCapacity int    `yaml:"max_capacity"`
	Shared      bool   `yaml:"shared"`
	Location    string `yaml:"location,omitempty"` // "x,y"
}

// DayHours is an opening window. Times are "HH:MM" or "HH:MM:SS".
type DayHours struct {
	Open            string `yaml:"open"`
	Close           string `yaml:"close"`
	LastReservation string `yaml:"last_reservation"`
}

// WeekdayHours overrides a single day.
type WeekdayHours struct {
	Day      string `yaml:"day"` // "monday".."sunday" or "mon".."sun"
	DayHours `yaml:",inline"`
}

// HoursSetup is the regular schedule. Weekdays applies to Monday..Friday;
// Days entries are applied afterwards and win.
type HoursSetup struct {
	Weekdays *DayHours      `yaml:"weekdays,omitempty"`
	Days     []WeekdayHours `yaml:"days"`
}

// SpecialDaySetup describes a holiday or private event.
type SpecialDaySetup struct {
	Date        string `yaml:"date"` // "2026-12-24"
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Closed      bool   `yaml:"closed"`
	DayHours    `yaml:",inline"`
}

// SetupConfig is the root of setup.yaml: the restaurant floor and schedule.
type SetupConfig struct {
	Tables      []TableSetup      `yaml:"tables"`
	Hours       HoursSetup        `yaml:"hours"`
	SpecialDays []SpecialDaySetup `yaml:"special_days"`
}

// LoadSetup loads and validates setup.yaml.
func LoadSetup(path string) (*SetupConfig, error) {
	if path == "" {
		path = "configs/setup.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read setup config: %w", err)
	}

	var cfg SetupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse setup config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate setup config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *SetupConfig) Validate() error {
	numbers := make(map[string]bool)
	for i, t := range c.Tables {
		tbl := t.Table()
		if err := tbl.Validate(); err != nil {
			return fmt.Errorf("tables[%d]: %w", i, err)
		}
		if numbers[t.Number] {
			return fmt.Errorf("tables[%d]: duplicate number '%s'", i, t.Number)
		}
		numbers[t.Number] = true
		if t.Location != "" {
			if _, err := model.ParseLocation(t.Location); err != nil {
				return fmt.Errorf("tables[%d]: %w", i, err)
			}
		}
	}

	if c.Hours.Weekdays != nil {
		for _, wh := range c.Hours.Weekdays.entries() {
			if err := hours.ValidateEntry(wh); err != nil {
				return fmt.Errorf("hours.weekdays: %w", err)
			}
		}
	}
	for i, d := range c.Hours.Days {
		day, err := ParseWeekday(d.Day)
		if err != nil {
			return fmt.Errorf("hours.days[%d]: %w", i, err)
		}
		if err := hours.ValidateEntry(d.DayHours.entry(day)); err != nil {
			return fmt.Errorf("hours.days[%d]: %w", i, err)
		}
	}

	dates := make(map[string]bool)
	for i, s := range c.SpecialDays {
		if _, err := timeofday.ParseDate(s.Date); err != nil {
			return fmt.Errorf("special_days[%d]: %w", i, err)
		}
		if dates[s.Date] {
			return fmt.Errorf("special_days[%d]: duplicate date %s", i, s.Date)
		}
		dates[s.Date] = true
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("special_days[%d]: name is required", i)
		}
		if s.Closed {
			continue
		}
		if err := hours.ValidateEntry(s.DayHours.entry(0)); err != nil {
			return fmt.Errorf("special_days[%d]: open days need valid open, close and last_reservation: %w", i, err)
		}
	}
	return nil
}

// Table converts the setup entry into the wire model.
func (t TableSetup) Table() model.Table {
	tbl := model.Table{
		TableNumber: t.Number,
		MinCapacity: t.MinCapacity,
		MaxCapacity: t.MaxCapacity,
		IsShared:    t.Shared,
	}
	if t.Location != "" {
		tbl.Location = model.StringPtr(t.Location)
	}
	return tbl
}

func (d DayHours) entry(day int) model.WeeklyHours {
	return model.WeeklyHours{
		DayOfWeek:           day,
		OpenTime:            fullTime(d.Open),
		CloseTime:           fullTime(d.Close),
		LastReservationTime: fullTime(d.LastReservation),
	}
}

func (d DayHours) entries() []model.WeeklyHours {
	return hours.WeekdayEntries(fullTime(d.Open), fullTime(d.Close), fullTime(d.LastReservation))
}

// fullTime normalises "HH:MM" to the "HH:MM:SS" wire form. Unparseable input
// is returned as is so validation can report it.
func fullTime(raw string) string {
	t, err := timeofday.Parse(raw)
	if err != nil {
		return raw
	}
	return t.String()
}

// WeeklyHours returns the entries to upsert, ordered by day.
func (c *SetupConfig) WeeklyHours() []model.WeeklyHours {
	byDay := make(map[int]model.WeeklyHours)
	if c.Hours.Weekdays != nil {
		for _, wh := range c.Hours.Weekdays.entries() {
			byDay[wh.DayOfWeek] = wh
		}
	}
	for _, d := range c.Hours.Days {
		day, err := ParseWeekday(d.Day)
		if err != nil {
			continue
		}
		byDay[day] = d.DayHours.entry(day)
	}
	out := make([]model.WeeklyHours, 0, len(byDay))
	for day := 0; day < 7; day++ {
		if wh, ok := byDay[day]; ok {
			out = append(out, wh)
		}
	}
	return out
}

// SpecialDayModels converts the special days into the wire model.
func (c *SetupConfig) SpecialDayModels() []model.SpecialDay {
	out := make([]model.SpecialDay, 0, len(c.SpecialDays))
	for _, s := range c.SpecialDays {
		sd := model.SpecialDay{Date: s.Date, Name: s.Name, IsClosed: s.Closed}
		if s.Description != "" {
			sd.Description = model.StringPtr(s.Description)
		}
		if !s.Closed {
			sd.OpenTime = model.StringPtr(fullTime(s.Open))
			sd.CloseTime = model.StringPtr(fullTime(s.Close))
			sd.LastReservationTime = model.StringPtr(fullTime(s.LastReservation))
		}
		out = append(out, sd)
	}
	return out
}

// ParseWeekday maps a day name onto the Monday=0 numbering.
func ParseWeekday(name string) (int, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i := 0; i < 7; i++ {
		full := strings.ToLower(timeofday.WeekdayName(i))
		if n == full || n == full[:3] {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", name)
}

// String returns a summary of the configuration.
func (c *SetupConfig) String() string {
	shared := 0
	for _, t := range c.Tables {
		if t.Shared {
			shared++
		}
	}
	return fmt.Sprintf("SetupConfig: %d tables (%d shared), %d weekly entries, %d special days",
		len(c.Tables), shared, len(c.WeeklyHours()), len(c.SpecialDays))
}
