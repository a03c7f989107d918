package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

type LLMClient interface {
	// ScoreCriterion returns the raw model answer, expected to hold {"score": n, "reason": "..."}.
	ScoreCriterion(ctx context.Context, req view.CriterionRequest) (string, error)
	ExtractBidderName(ctx context.Context, text string) (string, error)
	ExtractScoringRules(ctx context.Context, text string) ([]view.RuleDraft, error)
	GetModel() string
}

const bidderNameNotFound = "未找到"

const scoringSystemPrompt = `你是一名专业的评标专家，需要依据招标文件中的评分标准对投标文件进行客观评分。
只根据提供的投标文件内容打分，不得臆测。分数必须在0到满分之间。
以JSON格式返回结果：{"score": 分数, "reason": "评分理由"}，不要输出其他内容。`

func buildScorePrompt(req view.CriterionRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "评分项：%s\n", req.CriteriaName)
	if req.Category != "" {
		fmt.Fprintf(&sb, "所属类别：%s\n", req.Category)
	}
	fmt.Fprintf(&sb, "满分：%g分\n", req.MaxScore)
	if req.Description != "" {
		fmt.Fprintf(&sb, "评分标准：%s\n", req.Description)
	}
	if req.IsVeto {
		sb.WriteString("注意：这是否决项，如投标文件不满足要求请给0分。\n")
	}
	if req.BidderName != "" {
		fmt.Fprintf(&sb, "投标人：%s\n", req.BidderName)
	}
	sb.WriteString("\n投标文件相关内容：\n")
	sb.WriteString(req.Context)
	return sb.String()
}

const bidderNamePrompt = `请从以下投标文件内容中，仅抽取出完整的投标公司名称。
要求：
1. 只返回公司的全名，例如 "XX市XX科技有限公司"。
2. 不要包含任何其他信息，如 "法定代表人"、"地址"、"电话"、"（盖章）" 等。
3. 只返回最终的公司名称，不要任何解释或多余的文字。
4. 如果找不到，返回 "未找到"。`

const scoringRulesPrompt = `请从以下招标文件内容中提取评分规则。
每个评分项需要给出名称、满分、评分标准描述，标明是否为价格评分项、是否为否决项，价格评分项请给出价格分计算公式。
子项用parent字段填写父项名称，一级评分项的parent为空字符串。父项的满分等于子项满分之和。
只输出JSON，格式为：{"rules": [{"criteria_name": "", "max_score": 0, "description": "", "is_veto": false, "is_price_criteria": false, "price_formula": "", "parent": ""}]}`

// maxRulesTextChars limits the tender text sent for rule extraction.
const maxRulesTextChars = 12000

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ruleTree rebuilds the tree from flat model output. Unknown parents make a rule top level.
func ruleTree(flat []view.LLMRule) []view.RuleDraft {
	type node struct {
		draft    view.RuleDraft
		children []int
	}
	nodes := make([]node, len(flat))
	index := make(map[string]int, len(flat))
	var roots []int
	for i, r := range flat {
		nodes[i].draft = view.RuleDraft{
			CriteriaName:    strings.TrimSpace(r.CriteriaName),
			MaxScore:        r.MaxScore,
			Description:     r.Description,
			IsVeto:          r.IsVeto,
			IsPriceCriteria: r.IsPriceCriteria,
			PriceFormula:    r.PriceFormula,
		}
		parent, ok := index[strings.TrimSpace(r.Parent)]
		if r.Parent != "" && ok {
			nodes[parent].children = append(nodes[parent].children, i)
		} else {
			roots = append(roots, i)
		}
		if _, exists := index[nodes[i].draft.CriteriaName]; !exists {
			index[nodes[i].draft.CriteriaName] = i
		}
	}
	var build func(ids []int) []view.RuleDraft
	build = func(ids []int) []view.RuleDraft {
		if len(ids) == 0 {
			return nil
		}
		result := make([]view.RuleDraft, 0, len(ids))
		for _, id := range ids {
			d := nodes[id].draft
			d.Children = build(nodes[id].children)
			result = append(result, d)
		}
		return result
	}
	return build(roots)
}

// jsonObject cuts the outermost JSON object out of a free text answer.
func jsonObject(answer string) (string, bool) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return answer[start : end+1], true
}
