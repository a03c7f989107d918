package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenderScoringChapter = `第三章 评标办法
评分标准如下：
一、技术部分（60分）
1. 方案完整性（30分）
技术方案完整，覆盖全部需求
2. 方案可行性（30分）
三、价格分（40分）
投标报价得分＝(评标基准价／投标报价)×40
第四章 合同条款
1. 付款方式（10分）`

func TestLocateScoringSection(t *testing.T) {
	section := LocateScoringSection([]string{"第一章 招标公告", tenderScoringChapter})
	assert.Contains(t, section, "方案完整性")
	assert.NotContains(t, section, "合同条款")
	assert.NotContains(t, section, "招标公告")

	assert.Equal(t, "a\nb", LocateScoringSection([]string{"a", "b"}))
}

func TestParseScoringRulesTree(t *testing.T) {
	rules := ParseScoringRules(LocateScoringSection([]string{tenderScoringChapter}))
	want := []view.RuleDraft{
		{
			CriteriaName: "技术部分",
			MaxScore:     60,
			Children: []view.RuleDraft{
				{CriteriaName: "方案完整性", MaxScore: 30, Description: "技术方案完整，覆盖全部需求"},
				{CriteriaName: "方案可行性", MaxScore: 30},
			},
		},
		{
			CriteriaName:    "价格分",
			MaxScore:        40,
			Description:     "价格分（40分） 投标报价得分＝(评标基准价／投标报价)×40",
			IsPriceCriteria: true,
			PriceFormula:    "投标报价得分＝(评标基准价／投标报价)×40",
		},
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("ParseScoringRules() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScoringRulesRescalesNonPrice(t *testing.T) {
	rules := ParseScoringRules("1. 技术方案（30分）\n2. 商务部分（20分）\n3. 价格分（40分）")
	require.Len(t, rules, 3)
	assert.Equal(t, 36.0, rules[0].MaxScore)
	assert.Equal(t, 24.0, rules[1].MaxScore)
	assert.Equal(t, 40.0, rules[2].MaxScore)
	assert.True(t, rules[2].IsPriceCriteria)
}

func TestParseScoringRulesFixesParentSumAndDuplicates(t *testing.T) {
	rules := ParseScoringRules("1 技术部分（50分）\n1.1 方案（20分）\n1.2 进度（20分）\n1.3 进度（25分）\n2 价格分（55分）")
	require.Len(t, rules, 2)
	assert.Equal(t, 45.0, rules[0].MaxScore)
	require.Len(t, rules[0].Children, 2)
	assert.Equal(t, 25.0, rules[0].Children[1].MaxScore)
}

func TestParseScoringRulesSkipsZeroScoreLines(t *testing.T) {
	rules := ParseScoringRules("1. 资格审查（否决项）（0分）\n2. 技术方案（60分）\n3. 报价（40分）")
	require.Len(t, rules, 2)
	assert.Equal(t, "技术方案", rules[0].CriteriaName)
	assert.True(t, rules[1].IsPriceCriteria)
}

func TestNormalizeRulesKeepsVetoWithoutScore(t *testing.T) {
	rules := NormalizeRules([]view.RuleDraft{
		{CriteriaName: "废标条款"},
		{CriteriaName: "技术方案", MaxScore: 60},
		{CriteriaName: "价格", MaxScore: 40},
		{CriteriaName: "空项"},
	})
	require.Len(t, rules, 3)
	assert.True(t, rules[0].IsVeto)
	assert.False(t, rules[1].IsVeto)
	assert.True(t, rules[2].IsPriceCriteria)
	assert.Empty(t, rules[2].PriceFormula)
}

func TestExtractRulesFallbacks(t *testing.T) {
	llm := &fakeLLM{rules: []view.RuleDraft{{CriteriaName: "服务能力", MaxScore: 70}, {CriteriaName: "报价", MaxScore: 30}}}
	rules, method := NewRuleExtractionService(llm).ExtractRules(context.Background(), []string{"没有评分表"})
	assert.Equal(t, RuleMethodLLM, method)
	require.Len(t, rules, 2)
	assert.True(t, rules[1].IsPriceCriteria)

	llm = &fakeLLM{rulesErr: errors.New("timeout")}
	rules, method = NewRuleExtractionService(llm).ExtractRules(context.Background(), []string{"没有评分表"})
	assert.Equal(t, RuleMethodDefault, method)
	assert.Equal(t, DefaultRules(), rules)

	rules, method = NewRuleExtractionService(nil).ExtractRules(context.Background(), []string{tenderScoringChapter})
	assert.Equal(t, RuleMethodText, method)
	assert.Len(t, rules, 2)
}
