package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterBidderName(t *testing.T) {
	assert.Equal(t, "北京星河科技有限公司", FilterBidderName("：北京星河科技有限公司（盖单位章） 法定代表人：张三"))
	assert.Equal(t, "上海远航工程股份有限公司", FilterBidderName("上海远航工程股份有限公司 地址：上海市"))
	assert.Equal(t, "广州云图信息技术有限公司", FilterBidderName("广州云图信息技术有限公司公章"))
	assert.Equal(t, "", FilterBidderName("  "))
}

func TestIsValidCompanyName(t *testing.T) {
	assert.True(t, IsValidCompanyName("北京星河科技有限公司"))
	assert.True(t, IsValidCompanyName("Acme Trading Ltd"))
	assert.False(t, IsValidCompanyName("星河公司"))
	assert.False(t, IsValidCompanyName("某某项目招标有限公司"))
	assert.False(t, IsValidCompanyName("这是一段很长但没有关键字的文本"))
}

func TestExtractBidderNameByRegex(t *testing.T) {
	text := "投标文件\n正本\n投标人：北京星河科技有限公司（盖单位章）\n日期：2024年5月1日"
	assert.Equal(t, "北京星河科技有限公司", ExtractBidderNameByRegex(text))

	text = "供应商名称： 深圳蓝海电子股份有限公司\n"
	assert.Equal(t, "深圳蓝海电子股份有限公司", ExtractBidderNameByRegex(text))

	text = "目录\n杭州晨光软件开发有限公司\n第一章"
	assert.Equal(t, "杭州晨光软件开发有限公司", ExtractBidderNameByRegex(text))

	assert.Equal(t, "", ExtractBidderNameByRegex("没有名称"))
}

func TestExtractBidderNameFallbacks(t *testing.T) {
	llm := &fakeLLM{bidderName: "成都天府数据服务有限公司"}
	svc := NewBidderNameService(llm)
	name := svc.ExtractBidderName(context.Background(), []string{"无关内容"}, "bid1.pdf", 10)
	assert.Equal(t, "成都天府数据服务有限公司", name)

	llm = &fakeLLM{bidderNameErr: errors.New("model is down")}
	svc = NewBidderNameService(llm)
	assert.Equal(t, "星河投标", svc.ExtractBidderName(context.Background(), []string{"无关内容"}, "/uploads/星河投标.pdf", 10))

	svc = NewBidderNameService(nil)
	assert.Equal(t, "unnamed_bid_42", svc.ExtractBidderName(context.Background(), nil, ".pdf", 42))
}
