package config

import "github.com/BTreeMap/CaseTrack/internal/models"

// Default returns the built-in tracking configuration. Each call returns a fresh copy.
func Default() *TrackingConfig {
	return &TrackingConfig{
		Stages:           defaultStages(),
		ProcessingTimes:  defaultProcessingTimes(),
		InterviewStageID: DefaultInterviewStageID,
		Confidence: ConfidencePolicy{
			HighMaxStage:         3,
			MediumMaxStage:       6,
			HighBacklogCountries: []string{"China", "India", "Philippines"},
		},
		NotificationTriggers: []NotificationTrigger{
			{StageID: 3, DaysBeforeEstimate: 7, MessageTemplate: "Your biometrics appointment is expected around {{expected_date}}. Watch for the appointment notice."},
			{StageID: 6, DaysBeforeEstimate: 30, MessageTemplate: "Your interview is expected to be scheduled around {{expected_date}}. Start gathering your documents."},
			{StageID: 10, DaysBeforeEstimate: 14, MessageTemplate: "Your green card should be delivered around {{expected_date}}."},
		},
		VisaTypes: []Option{
			{Value: "EB-1", Label: "EB-1 (Priority Workers)"},
			{Value: "EB-2", Label: "EB-2 (Advanced Degree/Exceptional Ability)"},
			{Value: "EB-3", Label: "EB-3 (Skilled Workers)"},
			{Value: "EB-4", Label: "EB-4 (Special Immigrants)"},
			{Value: "EB-5", Label: "EB-5 (Investors)"},
			{Value: "family-based", Label: "Family-Based"},
			{Value: "asylum", Label: "Asylum-Based"},
		},
		ProcessingCenters: []Option{
			{Value: "California Service Center", Label: "California Service Center (CSC)"},
			{Value: "Nebraska Service Center", Label: "Nebraska Service Center (NSC)"},
			{Value: "Texas Service Center", Label: "Texas Service Center (TSC)"},
			{Value: "Vermont Service Center", Label: "Vermont Service Center (VSC)"},
			{Value: "Potomac Service Center", Label: "Potomac Service Center (PSC)"},
		},
		Countries: []Option{
			{Value: "China", Label: "China"},
			{Value: "India", Label: "India"},
			{Value: "Philippines", Label: "Philippines"},
			{Value: "Mexico", Label: "Mexico"},
			{Value: "Vietnam", Label: "Vietnam"},
			{Value: "Other", Label: "Other Country"},
		},
	}
}

func defaultStages() []models.Stage {
	return []models.Stage{
		{
			StageID:               1,
			Name:                  "Form I-130/I-140 Filed",
			Description:           "Initial petition has been filed with USCIS",
			RequiredInput:         models.InputManual,
			EstimatedDurationDays: models.DurationEstimate{Min: 0, Max: 0, Average: 0},
			IsMilestone:           true,
		},
		{
			StageID:               2,
			Name:                  "USCIS Receipt Notice",
			Description:           "USCIS has sent confirmation of receipt",
			RequiredInput:         models.InputAuto,
			EstimatedDurationDays: models.DurationEstimate{Min: 7, Max: 21, Average: 14},
			IsMilestone:           true,
		},
		{
			StageID:               3,
			Name:                  "Biometrics Completed",
			Description:           "Fingerprints and photos have been taken",
			RequiredInput:         models.InputManual,
			EstimatedDurationDays: models.DurationEstimate{Min: 21, Max: 42, Average: 28},
			IsMilestone:           true,
			RequiresUserAction:    true,
		},
		{
			StageID:               4,
			Name:                  "EAD/AP Issued",
			Description:           "Employment Authorization and/or Advance Parole document issued",
			RequiredInput:         models.InputOptional,
			EstimatedDurationDays: models.DurationEstimate{Min: 60, Max: 120, Average: 90},
		},
		{
			StageID:               5,
			Name:                  "Case Transferred",
			Description:           "Case has been transferred between USCIS offices",
			RequiredInput:         models.InputAuto,
			EstimatedDurationDays: models.DurationEstimate{Min: 7, Max: 30, Average: 14},
		},
		{
			StageID:               6,
			Name:                  "Interview Scheduled",
			Description:           "Interview notice has been sent",
			RequiredInput:         models.InputManual,
			EstimatedDurationDays: models.DurationEstimate{Min: 90, Max: 300, Average: 180},
			IsMilestone:           true,
		},
		{
			StageID:               7,
			Name:                  "Interview Completed",
			Description:           "Adjustment of status interview has been conducted",
			RequiredInput:         models.InputManual,
			EstimatedDurationDays: models.DurationEstimate{Min: 7, Max: 60, Average: 30},
			IsMilestone:           true,
			RequiresUserAction:    true,
		},
		{
			StageID:               8,
			Name:                  "Green Card Approved",
			Description:           "Final approval decision has been made",
			RequiredInput:         models.InputManual,
			EstimatedDurationDays: models.DurationEstimate{Min: 7, Max: 30, Average: 14},
			IsMilestone:           true,
		},
		{
			StageID:               9,
			Name:                  "Green Card Produced",
			Description:           "Physical green card has been produced",
			RequiredInput:         models.InputAuto,
			EstimatedDurationDays: models.DurationEstimate{Min: 7, Max: 21, Average: 10},
		},
		{
			StageID:               10,
			Name:                  "Green Card Delivered",
			Description:           "Physical green card has been delivered",
			RequiredInput:         models.InputAuto,
			EstimatedDurationDays: models.DurationEstimate{Min: 3, Max: 14, Average: 7},
			IsMilestone:           true,
		},
	}
}

func defaultProcessingTimes() []models.ProcessingTimeConfig {
	return []models.ProcessingTimeConfig{
		{
			VisaType:         "EB-2",
			ProcessingCenter: "California Service Center",
			CountrySpecificDelays: map[string]int{
				"China": 730,
				"India": 1095,
			},
			AvgDurationsDays: map[string]int{
				"1_to_2":  14,
				"2_to_3":  28,
				"3_to_4":  90,
				"3_to_5":  60,
				"5_to_6":  180,
				"6_to_7":  30,
				"7_to_8":  14,
				"8_to_9":  10,
				"9_to_10": 7,
			},
			UpdatedAt: "2024-01-01",
		},
		{
			// EB-1 cases usually skip the transfer stage.
			VisaType:         "EB-1",
			ProcessingCenter: "California Service Center",
			AvgDurationsDays: map[string]int{
				"1_to_2":  14,
				"2_to_3":  28,
				"3_to_4":  90,
				"3_to_6":  120,
				"6_to_7":  30,
				"7_to_8":  14,
				"8_to_9":  10,
				"9_to_10": 7,
			},
			UpdatedAt: "2024-01-01",
		},
		{
			VisaType:         "EB-3",
			ProcessingCenter: "California Service Center",
			CountrySpecificDelays: map[string]int{
				"China":       365,
				"India":       545,
				"Philippines": 180,
			},
			AvgDurationsDays: map[string]int{
				"1_to_2":  14,
				"2_to_3":  35,
				"3_to_4":  120,
				"3_to_5":  45,
				"5_to_6":  210,
				"6_to_7":  45,
				"7_to_8":  21,
				"8_to_9":  14,
				"9_to_10": 7,
			},
			UpdatedAt: "2024-01-01",
		},
		{
			VisaType:         "EB-2",
			ProcessingCenter: "Nebraska Service Center",
			CountrySpecificDelays: map[string]int{
				"China": 730,
				"India": 1095,
			},
			AvgDurationsDays: map[string]int{
				"1_to_2":  10,
				"2_to_3":  21,
				"3_to_4":  75,
				"3_to_5":  45,
				"5_to_6":  150,
				"6_to_7":  25,
				"7_to_8":  10,
				"8_to_9":  7,
				"9_to_10": 5,
			},
			UpdatedAt: "2024-01-01",
		},
	}
}
