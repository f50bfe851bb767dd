package server

import (
	"context"
	"fmt"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

// Seed populates an empty database with demo projects so a fresh server
// has something to show. It is a no-op when projects already exist.
func (s *Store) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count); err != nil {
		return fmt.Errorf("checking seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	drafts := []project.Draft{
		{Title: "Billing revamp", Description: "Replace the legacy invoicing pipeline", Owner: "ada", Status: project.StatusActive, Health: project.HealthGreen, Tags: []string{"backend", "payments"}, Progress: 45},
		{Title: "Mobile onboarding", Description: "New signup flow for the mobile apps", Owner: "grace", Status: project.StatusActive, Health: project.HealthYellow, Tags: []string{"mobile", "ux"}, Progress: 70},
		{Title: "Data warehouse migration", Description: "Move reporting off the OLTP replica", Owner: "linus", Status: project.StatusPlanning, Health: project.HealthGreen, Tags: []string{"data", "infra"}, Progress: 10},
		{Title: "Search relevance", Description: "Tune ranking for the product catalog", Owner: "ada", Status: project.StatusActive, Health: project.HealthRed, Tags: []string{"search"}, Progress: 30},
		{Title: "SSO rollout", Description: "SAML and OIDC for enterprise tenants", Owner: "margaret", Status: project.StatusCompleted, Health: project.HealthGreen, Tags: []string{"security", "backend"}, Progress: 100},
		{Title: "Design system refresh", Description: "Component library v2", Owner: "grace", Status: project.StatusInactive, Health: project.HealthYellow, Tags: []string{"ux"}, Progress: 55},
	}

	for _, d := range drafts {
		p, err := s.CreateProject(ctx, d)
		if err != nil {
			return fmt.Errorf("seeding project %q: %w", d.Title, err)
		}
		for i, title := range []string{"Kickoff", "First milestone", "Launch"} {
			_, err := s.AddMilestone(ctx, project.Milestone{
				ProjectID: p.ID,
				Title:     title,
				Done:      i == 0,
			})
			if err != nil {
				return err
			}
		}
		if _, err := s.AddTeamMember(ctx, project.TeamMember{
			ProjectID: p.ID, Name: d.Owner, Role: "lead", Capacity: 0.8,
		}); err != nil {
			return err
		}
	}
	return nil
}
