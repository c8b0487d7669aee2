package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionRendererProducesPDF(t *testing.T) {
	renderer := NewDecisionRenderer(DecisionRendererConfig{})
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

	out, err := renderer.Render(DecisionDocument{
		Header:           "HELLENIC REPUBLIC\nMINISTRY OF EDUCATION",
		IssuedAt:         start,
		ProtocolNumber:   "1234",
		Subject:          "Regular leave",
		EmployeeName:     "Maria Papadopoulou",
		FatherName:       "Giorgos",
		Service:          "Directorate of Secondary Education",
		DecisionText:     "We grant regular leave to the employee.",
		Intervals:        []DecisionInterval{{Start: start, End: start.AddDate(0, 0, 4), WorkingDays: 5}},
		TotalWorkingDays: 5,
		FinalSignatory:   "The Director",
		ProcessedByName:  "Nikos Officer",
		ProcessedByPhone: "2100000000",
		Recipients:       []string{"School unit"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestDecisionRendererMissingFont(t *testing.T) {
	renderer := NewDecisionRenderer(DecisionRendererConfig{FontPath: "/does/not/exist.ttf"})
	_, err := renderer.Render(DecisionDocument{Subject: "x"})
	assert.Error(t, err)
}

type csvRow struct {
	Name string `csv:"name"`
	Days int    `csv:"days"`
}

func TestCSV(t *testing.T) {
	out, err := CSV([]csvRow{{Name: "a", Days: 3}})
	require.NoError(t, err)
	assert.Equal(t, "name,days\na,3\n", string(out))
}
