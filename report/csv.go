package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

const utf8Bom = "\ufeff"

const vetoedMark = "废标"

func columnTitle(r view.ScoringRule) string {
	return fmt.Sprintf("%s (%g分)", r.CriteriaName, r.MaxScore)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteResultsCSV writes the ranked results table with a UTF-8 BOM, so spreadsheet tools detect the encoding.
func WriteResultsCSV(w io.Writer, rules []view.ScoringRule, results []view.AnalysisResult) error {
	if _, err := io.WriteString(w, utf8Bom); err != nil {
		return err
	}
	columns := LeafColumns(rules)

	cw := csv.NewWriter(w)
	header := []string{"排名", "投标人"}
	for _, c := range columns {
		header = append(header, columnTitle(c))
	}
	header = append(header, "价格分", "总分")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range Rank(results) {
		record := []string{strconv.Itoa(r.Rank), r.BidderName}
		for _, c := range columns {
			v := view.FindCriterionScore(r.DetailedScores, c.CriteriaName)
			if v == nil {
				record = append(record, "")
				continue
			}
			record = append(record, formatScore(*v))
		}
		total := formatScore(r.TotalScore)
		if r.IsVetoed {
			total = vetoedMark
		}
		record = append(record, formatScore(r.PriceScore), total)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
