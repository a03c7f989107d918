package report

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"strings"
	"testing"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRules = []view.ScoringRule{
	{CriteriaName: "技术方案", MaxScore: 50, Children: []view.ScoringRule{
		{CriteriaName: "方案完整性", MaxScore: 30},
		{CriteriaName: "项目团队", MaxScore: 20},
	}},
	{CriteriaName: "资格审查", IsVeto: true},
	{CriteriaName: "价格分", MaxScore: 40, IsPriceCriteria: true},
}

func scores(complete, team float64) []view.CriterionScore {
	return []view.CriterionScore{
		{CriteriaName: "技术方案", Score: complete + team, Children: []view.CriterionScore{
			{CriteriaName: "方案完整性", Score: complete},
			{CriteriaName: "项目团队", Score: team},
		}},
	}
}

var testResults = []view.AnalysisResult{
	{Id: 1, BidderName: "beta Ltd", TotalScore: 70, PriceScore: 30, DetailedScores: scores(25, 15)},
	{Id: 2, BidderName: "Alpha Co.", TotalScore: 95, PriceScore: 40, IsVetoed: true, DetailedScores: scores(30, 20)},
	{Id: 3, BidderName: "Gamma Inc", TotalScore: 80, PriceScore: 36, DetailedScores: scores(28, 16)},
}

func ids(rows []RankedResult) []int64 {
	var result []int64
	for _, r := range rows {
		result = append(result, r.Id)
	}
	return result
}

func TestRankPutsVetoedLast(t *testing.T) {
	ranked := Rank(testResults)
	assert.Equal(t, []int64{3, 1, 2}, ids(ranked))
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 3, ranked[2].Rank)
}

func TestApply(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want []int64
	}{
		{"default", Options{}, []int64{3, 1, 2}},
		{"total asc", Options{SortBy: SortByTotal, Asc: true}, []int64{2, 1, 3}},
		{"name asc", Options{SortBy: SortByName, Asc: true}, []int64{2, 1, 3}},
		{"rank asc", Options{SortBy: SortByRank, Asc: true}, []int64{3, 1, 2}},
		{"rank desc", Options{SortBy: SortByRank}, []int64{2, 1, 3}},
		{"price desc", Options{SortBy: SortByPrice}, []int64{2, 3, 1}},
		{"criterion", Options{SortBy: "项目团队"}, []int64{2, 3, 1}},
		{"valid", Options{Filter: FilterValid}, []int64{3, 1}},
		{"invalid", Options{Filter: FilterInvalid}, []int64{2}},
		{"search", Options{Search: "  GAMMA "}, []int64{3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if diff := cmp.Diff(c.want, ids(Apply(testResults, c.opts))); diff != "" {
				t.Errorf("unexpected order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyKeepsRank(t *testing.T) {
	rows := Apply(testResults, Options{SortBy: SortByName, Asc: true})
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha Co.", rows[0].BidderName)
	assert.Equal(t, 3, rows[0].Rank)
}

func TestWriteResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, testRules, testResults))

	data := buf.String()
	require.True(t, strings.HasPrefix(data, "\ufeff"))
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(data, "\ufeff"))).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"排名", "投标人", "方案完整性 (30分)", "项目团队 (20分)", "资格审查 (0分)", "价格分", "总分"},
		{"1", "Gamma Inc", "28.00", "16.00", "", "36.00", "80.00"},
		{"2", "beta Ltd", "25.00", "15.00", "", "30.00", "70.00"},
		{"3", "Alpha Co.", "30.00", "20.00", "", "40.00", "废标"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("unexpected csv (-want +got):\n%s", diff)
	}
}

func TestRenderScoreChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderScoreChart(&buf, testResults))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, chartHeight, img.Bounds().Dy())

	assert.ErrorIs(t, RenderScoreChart(&buf, nil), ErrNothingToDraw)
}

func TestRenderResults(t *testing.T) {
	out := RenderResults(testRules, Apply(testResults, Options{}))
	assert.Contains(t, out, "方案完整性 (30分)")
	assert.Contains(t, out, "Gamma Inc")
	assert.Contains(t, out, "废标")
	assert.Less(t, strings.Index(out, "Gamma Inc"), strings.Index(out, "beta Ltd"))
}

func TestRenderRules(t *testing.T) {
	out := RenderRules(testRules)
	assert.Contains(t, out, "  方案完整性")
	assert.Contains(t, out, "否决项")
	assert.Contains(t, out, "价格")
}

func TestRenderSummary(t *testing.T) {
	ten, twenty := 10.0, 20.0
	summary := &view.DynamicSummary{
		HeaderRows: [][]view.HeaderCell{
			{{Name: "排名", Rowspan: 2}, {Name: "投标人", Rowspan: 2}, {Name: "技术方案 (50分)", Colspan: 2}, {Name: "价格分", Rowspan: 2}, {Name: "总分", Rowspan: 2}},
			{{Name: "方案完整性 (30分)"}, {Name: "项目团队 (20分)"}},
		},
		Rows: []view.SummaryRow{{Rank: 1, BidderName: "Gamma Inc", Scores: []*float64{&twenty, &ten}, PriceScore: 36, TotalScore: 66}},
	}
	out := RenderSummary(summary)
	for _, s := range []string{"技术方案 (50分)", "项目团队 (20分)", "Gamma Inc", "66.00"} {
		assert.Contains(t, out, s)
	}
	assert.Empty(t, RenderSummary(nil))
}

func TestRenderStatus(t *testing.T) {
	out := RenderStatus(&view.AnalysisStatus{
		ProjectStatus: view.ProjectStatusProcessing,
		Bids: []view.BidProgress{
			{BidderName: "Gamma Inc", Status: view.BidStatusProcessing, ProgressCompleted: 2, ProgressTotal: 4, CurrentRule: "项目团队"},
			{BidderName: "beta Ltd", Status: view.BidStatusError, ErrorMessage: "no text extracted"},
		},
	})
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "项目团队")
	assert.Contains(t, out, "no text extracted")
}
