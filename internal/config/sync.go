package config

import (
	"context"
	"fmt"

	"tablebook/internal/model"
)

// SetupAPI is the part of the backend the setup sync writes to.
type SetupAPI interface {
	ListTables(ctx context.Context) ([]model.Table, error)
	CreateTable(ctx context.Context, t model.Table) (*model.Table, error)
	UpdateTable(ctx context.Context, id string, t model.Table) (*model.Table, error)
	SetHours(ctx context.Context, wh model.WeeklyHours) (*model.WeeklyHours, error)
	SetSpecialHours(ctx context.Context, sd model.SpecialDay) (*model.SpecialDay, error)
}

// SyncReport counts what ApplySetup changed.
type SyncReport struct {
	TablesCreated int
	TablesUpdated int
	HoursSet      int
	SpecialSet    int
	// Unmanaged lists table numbers present upstream but absent from setup.yaml.
	Unmanaged []string
}

// ApplySetup pushes setup.yaml to the backend. Tables are matched by number
// and only written when they differ. Tables missing from the file are left
// alone and reported.
func ApplySetup(ctx context.Context, api SetupAPI, cfg *SetupConfig) (SyncReport, error) {
	var report SyncReport
	if cfg == nil {
		return report, fmt.Errorf("setup config is nil")
	}

	existing, err := api.ListTables(ctx)
	if err != nil {
		return report, fmt.Errorf("list tables: %w", err)
	}
	byNumber := make(map[string]model.Table, len(existing))
	for _, t := range existing {
		byNumber[t.TableNumber] = t
	}

	seen := make(map[string]struct{})
	for _, ts := range cfg.Tables {
		want := ts.Table()
		seen[want.TableNumber] = struct{}{}

		have, ok := byNumber[want.TableNumber]
		if !ok {
			if _, err := api.CreateTable(ctx, want); err != nil {
				return report, fmt.Errorf("create table %s: %w", want.TableNumber, err)
			}
			report.TablesCreated++
			continue
		}
		if sameTable(have, want) {
			continue
		}
		if _, err := api.UpdateTable(ctx, have.ID, want); err != nil {
			return report, fmt.Errorf("update table %s: %w", want.TableNumber, err)
		}
		report.TablesUpdated++
	}
	for _, t := range existing {
		if _, ok := seen[t.TableNumber]; !ok {
			report.Unmanaged = append(report.Unmanaged, t.TableNumber)
		}
	}

	for _, wh := range cfg.WeeklyHours() {
		if _, err := api.SetHours(ctx, wh); err != nil {
			return report, fmt.Errorf("set hours for day %d: %w", wh.DayOfWeek, err)
		}
		report.HoursSet++
	}

	for _, sd := range cfg.SpecialDayModels() {
		if _, err := api.SetSpecialHours(ctx, sd); err != nil {
			return report, fmt.Errorf("set special hours %s: %w", sd.Date, err)
		}
		report.SpecialSet++
	}
	return report, nil
}

func sameTable(a, b model.Table) bool {
	if a.MinCapacity != b.MinCapacity || a.MaxCapacity != b.MaxCapacity || a.IsShared != b.IsShared {
		return false
	}
	al, bl := "", ""
	if a.Location != nil {
		al = *a.Location
	}
	if b.Location != nil {
		bl = *b.Location
	}
	return al == bl
}
