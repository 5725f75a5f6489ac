package service

import (
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
)

type ProfileService struct {
	catalog *profile.Catalog
}

func NewProfileService(catalog *profile.Catalog) *ProfileService {
	return &ProfileService{catalog: catalog}
}

// List describes every known profile without its plot series.
func (s *ProfileService) List() []models.ProfileInfo {
	names := s.catalog.Names()
	out := make([]models.ProfileInfo, 0, len(names))
	for _, name := range names {
		p, err := s.catalog.Get(name)
		if err != nil {
			continue
		}
		out = append(out, describeProfile(p, false))
	}
	return out
}

// Get describes one profile including its target curve.
func (s *ProfileService) Get(name string) (models.ProfileInfo, error) {
	p, err := s.catalog.Get(name)
	if err != nil {
		return models.ProfileInfo{}, err
	}
	return describeProfile(p, true), nil
}

func describeProfile(p *profile.Profile, withCurve bool) models.ProfileInfo {
	info := models.ProfileInfo{
		Name:          p.Name(),
		StepSeconds:   p.Step().Seconds(),
		Setpoints:     p.Setpoints(),
		LengthSeconds: p.Length(),
		MaxTempC:      p.MaxTemperature(),
	}
	if withCurve {
		info.Time, info.Temperature = p.PlotSeries()
	}
	return info
}
