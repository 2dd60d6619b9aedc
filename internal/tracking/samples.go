package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/estimation"
	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/BTreeMap/CaseTrack/internal/store"
)

type sampleStage struct {
	date  string
	notes string
}

type sampleCase struct {
	userID, caseNumber, visaType, center, country, priorityDate string
	currentStageID                                              int
	concurrent, ead, ap                                         bool
	attorney                                                    *models.AttorneyInfo
	createdAt                                                   time.Time
	completed                                                   []sampleStage
}

var sampleCases = []sampleCase{
	{
		userID: "user123", caseNumber: "MSC2490012345", visaType: "EB-2", center: "California Service Center",
		country: "China", priorityDate: "2021-03-05", currentStageID: 3,
		concurrent: true, ead: true, ap: true,
		attorney:  &models.AttorneyInfo{Name: "Jane Smith", Firm: "Smith Immigration Law", Email: "jane@smithlaw.com"},
		createdAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		completed: []sampleStage{
			{"2024-03-01", "EB-2 petition filed with concurrent I-485"},
			{"2024-03-15", "Receipt notice received for all forms"},
			{"2024-04-10", "Biometrics appointment completed at ASC"},
		},
	},
	{
		userID: "user456", caseNumber: "MSC2490067890", visaType: "EB-1", center: "Nebraska Service Center",
		country: "India", priorityDate: "2023-01-15", currentStageID: 7,
		concurrent: true, ap: true,
		createdAt: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
		completed: []sampleStage{
			{"2023-01-15", ""},
			{"2023-01-28", ""},
			{"2023-03-10", ""},
			{"2023-06-01", ""},
			{"2023-08-15", ""},
			{"2024-09-01", ""},
			{"2024-10-15", "Interview successful, approval recommended"},
		},
	},
	{
		userID: "user789", caseNumber: "MSC2490098765", visaType: "EB-3", center: "Texas Service Center",
		country: "Philippines", priorityDate: "2024-08-01", currentStageID: 2,
		createdAt: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		completed: []sampleStage{
			{"2024-08-01", ""},
			{"2024-08-15", ""},
		},
	},
}

// SampleCases builds the demo cases with projections computed by engine. Stages up to and
// including each case's current stage are completed.
func SampleCases(engine *estimation.Engine) ([]models.UserCaseTracker, error) {
	out := make([]models.UserCaseTracker, 0, len(sampleCases))
	for _, sc := range sampleCases {
		c, err := engine.InitializeCase(sc.userID, sc.visaType, sc.center, sc.priorityDate, sc.country)
		if err != nil {
			return nil, fmt.Errorf("sample case %s: %w", sc.userID, err)
		}
		c.CaseNumber = sc.caseNumber
		c.IsConcurrentFiling = sc.concurrent
		c.HasEADApplication = sc.ead
		c.HasAPApplication = sc.ap
		c.AttorneyInfo = sc.attorney
		c.CreatedAt = sc.createdAt
		c.CurrentStageID = sc.currentStageID

		for i, st := range sc.completed {
			p := c.Progress(i + 1)
			if p == nil {
				return nil, fmt.Errorf("sample case %s: %w: %d", sc.userID, models.ErrStageNotFound, i+1)
			}
			p.Completed = true
			p.DateCompleted = st.date
			p.DateEstimated = ""
			p.Notes = st.notes
			p.UpdatedBy = SystemUserID
		}
		if err := engine.Refresh(c); err != nil {
			return nil, fmt.Errorf("sample case %s: %w", sc.userID, err)
		}
		tracker, err := engine.ProjectStageDates(c)
		if err != nil {
			return nil, fmt.Errorf("sample case %s: %w", sc.userID, err)
		}
		c.Tracker = tracker
		out = append(out, *c)
	}
	return out, nil
}

// Populate replaces every stored case, and the audit log, with the demo cases.
func (s *Service) Populate(ctx context.Context) ([]models.UserCaseTracker, error) {
	cases, err := SampleCases(s.engine)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceAllCases(cases); err != nil {
		slog.Error("Service.Populate: store failed", "error", err)
		return nil, err
	}
	stored, _, err := s.store.ListCases(store.CaseFilter{})
	if err != nil {
		return nil, err
	}
	slog.Info("Service.Populate: sample cases loaded", "count", len(stored))
	return stored, nil
}

// PopulationStatus reports whether any case is stored.
func (s *Service) PopulationStatus(ctx context.Context) (models.PopulationStatus, error) {
	_, total, err := s.store.ListCases(store.CaseFilter{Limit: 1})
	if err != nil {
		slog.Error("Service.PopulationStatus: store failed", "error", err)
		return models.PopulationStatus{}, err
	}
	return models.PopulationStatus{Populated: total > 0, Count: total}, nil
}
