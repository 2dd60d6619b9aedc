package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/BTreeMap/CaseTrack/internal/testutil"
)

func testApp() *App {
	return &App{Format: Formatter{Plain: true}, Now: testutil.FixedClock}
}

// execute runs casectl with args and returns its stdout.
func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStagesCmd(t *testing.T) {
	out, err := execute(t, testApp(), "stages")
	require.NoError(t, err)
	assert.Contains(t, out, "STAGES")
	assert.Contains(t, out, "Form I-130/I-140 Filed")
	assert.Contains(t, out, "Green Card Delivered")
	assert.NotContains(t, out, "\x1b[", "plain output must not carry escape sequences")
}

func TestStagesCmd_Chinese(t *testing.T) {
	out, err := execute(t, testApp(), "stages", "--lang", "zh")
	require.NoError(t, err)
	assert.NotContains(t, out, "Green Card Delivered")
}

func TestStagesCmd_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.yaml")
	yaml := `stages:
  - stage_id: 1
    name: Filed
    estimated_duration_days: {min: 1, max: 2, average: 1}
  - stage_id: 2
    name: Approved
    estimated_duration_days: {min: 5, max: 9, average: 7}
interview_stage_id: 2
processing_times: []
notification_triggers: []
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	out, err := execute(t, testApp(), "stages", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Filed")
	assert.Contains(t, out, "Approved")
	assert.NotContains(t, out, "Biometrics Completed")
}

func TestStagesCmd_MissingConfig(t *testing.T) {
	_, err := execute(t, testApp(), "stages", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEstimateCmd(t *testing.T) {
	out, err := execute(t, testApp(), "estimate",
		"--visa", "EB-2",
		"--center", "California Service Center",
		"--country", "China",
		"--stage", "1",
		"--completed", "2024-06-01",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "USCIS Receipt Notice (stage 2)")
	assert.Contains(t, out, "2024-06-15")
	assert.Contains(t, out, "in 14 days")
	assert.Contains(t, out, "high")
}

func TestEstimateCmd_JSON(t *testing.T) {
	out, err := execute(t, testApp(), "estimate",
		"--visa", "EB-2",
		"--center", "California Service Center",
		"--country", "China",
		"--json",
	)
	require.NoError(t, err)

	var res models.EstimationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.NextStepEstimate.StageID)
	// Without a completion date the projection starts today.
	assert.Equal(t, "2024-06-15", res.NextStepEstimate.ExpectedDate)
	assert.NotEmpty(t, res.EstimatedCompletionDate)
}

func TestEstimateCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{
			name: "missing visa",
			args: []string{"estimate", "--center", "California Service Center", "--country", "China"},
			want: models.ErrMissingRequiredFields,
		},
		{
			name: "bad date",
			args: []string{"estimate", "--visa", "EB-2", "--center", "California Service Center", "--country", "China", "--completed", "06/01/2024"},
			want: models.ErrInvalidDate,
		},
		{
			name: "unknown stage",
			args: []string{"estimate", "--visa", "EB-2", "--center", "California Service Center", "--country", "China", "--stage", "42"},
			want: models.ErrStageNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, testApp(), tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEligibilityCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"married", []string{"q3"}, "FAMILY_BASED_IMMEDIATE"},
		{"employment", []string{"q1", "q2", "q5"}, "EB2"},
		{"nothing", nil, "CONSULT_ATTORNEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, testApp(), append([]string{"eligibility"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "("+tt.want+")")
		})
	}
}

func TestEligibilityCmd_Questions(t *testing.T) {
	out, err := execute(t, testApp(), "eligibility", "--questions", "--lang", "zh")
	require.NoError(t, err)
	assert.Contains(t, out, "q1")
	assert.Contains(t, out, "您是否拥有硕士或更高学位？")
}

func TestEligibilityCmd_UnknownQuestion(t *testing.T) {
	_, err := execute(t, testApp(), "eligibility", "q99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "q99")
}

func TestFormatter_Table(t *testing.T) {
	f := Formatter{Plain: true}
	out := f.Table([]string{"ID", "NAME"}, [][]string{{"1", "short"}, {"10", "much longer"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID  NAME", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "──  ───────────", lines[1])
	assert.Equal(t, "10  much longer", lines[3])
	assert.Empty(t, f.Table(nil, nil))
}

func TestFormatter_Confidence(t *testing.T) {
	f := Formatter{Plain: true}
	assert.Equal(t, "low", f.Confidence(models.ConfidenceLow))
	assert.Equal(t, "ID:", strings.TrimSpace(strings.TrimSuffix(f.Field("ID", ""), "\n")))
}
