package entity

import "github.com/Netcracker/qubership-bid-evaluation-service/view"

type ScoringRule struct {
	tableName struct{} `pg:"scoring_rule"`

	Id              int64   `pg:"id,pk"`
	ProjectId       int64   `pg:"project_id,notnull"`
	ParentId        int64   `pg:"parent_id,notnull,use_zero"`
	Position        int     `pg:"position,notnull,use_zero"`
	Category        string  `pg:"category,type:varchar"`
	CriteriaName    string  `pg:"criteria_name,type:varchar,notnull"`
	MaxScore        float64 `pg:"max_score,notnull,use_zero"`
	Weight          float64 `pg:"weight,notnull,use_zero"`
	Description     string  `pg:"description,type:text"`
	IsVeto          bool    `pg:"is_veto,notnull,use_zero"`
	IsPriceCriteria bool    `pg:"is_price_criteria,notnull,use_zero"`
	PriceFormula    string  `pg:"price_formula,type:text"`
}

// MakeRuleTree assembles rules ordered by position into a tree. Rules whose parent is unknown become top-level.
func MakeRuleTree(ents []ScoringRule) []view.ScoringRule {
	children := make(map[int64][]ScoringRule)
	known := make(map[int64]bool, len(ents))
	for _, e := range ents {
		known[e.Id] = true
	}
	var roots []ScoringRule
	for _, e := range ents {
		if e.ParentId == 0 || !known[e.ParentId] {
			roots = append(roots, e)
			continue
		}
		children[e.ParentId] = append(children[e.ParentId], e)
	}
	var build func(list []ScoringRule) []view.ScoringRule
	build = func(list []ScoringRule) []view.ScoringRule {
		result := make([]view.ScoringRule, 0, len(list))
		for _, e := range list {
			r := MakeScoringRuleView(e)
			if ch, ok := children[e.Id]; ok {
				r.Children = build(ch)
			}
			result = append(result, r)
		}
		return result
	}
	return build(roots)
}

func MakeScoringRuleView(ent ScoringRule) view.ScoringRule {
	return view.ScoringRule{
		Id:              ent.Id,
		Category:        ent.Category,
		CriteriaName:    ent.CriteriaName,
		MaxScore:        ent.MaxScore,
		Weight:          ent.Weight,
		Description:     ent.Description,
		IsVeto:          ent.IsVeto,
		IsPriceCriteria: ent.IsPriceCriteria,
		PriceFormula:    ent.PriceFormula,
	}
}
