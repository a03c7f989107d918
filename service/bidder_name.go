package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	log "github.com/sirupsen/logrus"
)

type BidderNameService interface {
	// ExtractBidderName never fails: it falls back to the file name when the document gives no answer.
	ExtractBidderName(ctx context.Context, pages []string, fileName string, fileSize int64) string
}

func NewBidderNameService(llmClient client.LLMClient) BidderNameService {
	return &bidderNameServiceImpl{llmClient: llmClient}
}

type bidderNameServiceImpl struct {
	llmClient client.LLMClient
}

const bidderNameSearchPages = 3
const bidderNameLLMChars = 2000

var bidderNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`投\s*标\s*人\s*[:：\s]([^\n]+)`),
	regexp.MustCompile(`投标(?:人|单位|方)名称\s*[:：\s]([^\n]+)`),
	regexp.MustCompile(`供\s*应\s*商\s*名\s*称\s*[:：\s]([^\n]+)`),
	regexp.MustCompile(`致\s*[:：\s]([^\n]+?(?:公司|单位))`),
	regexp.MustCompile(`(?m)^\s*([^\n]+?公司)\s*$`),
	regexp.MustCompile(`(?i)bidder(?:\s+name)?\s*[:：]\s*([^\n]+)`),
	regexp.MustCompile(`(?i)company\s+name\s*[:：]\s*([^\n]+)`),
}

var bidderStopPhrases = []string{
	"法定代表", "授权代表", "单位地址", "通信地址", "电话", "传真",
	"(盖单位章)", "（盖单位章）", "投标单位", "投标人", "（盖章）", "(盖章)",
	"地址", "邮政编码", "联系人", "手机",
}

var (
	bracketedText = regexp.MustCompile(`[\(（\[【〔].*?[\)）\]】〕]`)
	strayBrackets = strings.NewReplacer("[", "", "]", "", "（", "", "）", "", "(", "", ")", "", "【", "", "】", "", "〔", "", "〕", "")
	multiSpace    = regexp.MustCompile(`\s+`)
)

var companyKeywords = []string{"公司", "有限", "股份", "集团", "厂", "院", "所", "社", "中心"}
var companyKeywordsLatin = []string{"ltd", "inc", "co.", "llc", "corporation", "gmbh"}
var invalidNameKeywords = []string{"招标", "投标", "项目", "文件", "正本", "副本", "单位章", "法定代表"}

func (b bidderNameServiceImpl) ExtractBidderName(ctx context.Context, pages []string, fileName string, fileSize int64) string {
	if len(pages) > bidderNameSearchPages {
		pages = pages[:bidderNameSearchPages]
	}
	text := strings.Join(pages, "\n")

	if name := ExtractBidderNameByRegex(text); name != "" {
		log.Infof("Bidder name '%s' found in %s", name, fileName)
		return name
	}

	if b.llmClient != nil && strings.TrimSpace(text) != "" {
		answer, err := b.llmClient.ExtractBidderName(ctx, utils.Truncate(text, bidderNameLLMChars))
		if err != nil {
			log.Errorf("Failed to extract bidder name of %s with LLM: %s", fileName, err)
		} else if name := FilterBidderName(answer); IsValidCompanyName(name) {
			log.Infof("Bidder name '%s' of %s found by LLM", name, fileName)
			return name
		} else {
			log.Debugf("LLM answer '%s' for %s is not a valid company name", answer, fileName)
		}
	}

	name := utils.BaseNameWithoutExt(fileName)
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("unnamed_bid_%d", fileSize)
	}
	log.Infof("Bidder name of %s is taken from file name: %s", fileName, name)
	return name
}

func ExtractBidderNameByRegex(text string) string {
	for _, re := range bidderNamePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := FilterBidderName(m[1])
			if IsValidCompanyName(name) {
				return name
			}
		}
	}
	return ""
}

// FilterBidderName cuts contact details, seal marks and bracketed notes off a candidate name.
func FilterBidderName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSpace(strings.TrimLeft(name, ":："))
	if name == "" {
		return ""
	}
	for _, phrase := range bidderStopPhrases {
		if idx := strings.Index(name, phrase); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
	}
	name = strings.TrimSpace(bracketedText.ReplaceAllString(name, ""))
	name = strayBrackets.Replace(name)
	for _, suffix := range []string{"公司章", "公章", "单位章"} {
		name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
	}
	return strings.TrimSpace(multiSpace.ReplaceAllString(name, " "))
}

func IsValidCompanyName(name string) bool {
	if utf8.RuneCountInString(name) <= 5 {
		return false
	}
	lower := strings.ToLower(name)
	hasCompanyKeyword := false
	for _, k := range companyKeywords {
		if strings.Contains(name, k) {
			hasCompanyKeyword = true
			break
		}
	}
	if !hasCompanyKeyword {
		for _, k := range companyKeywordsLatin {
			if strings.Contains(lower, k) {
				hasCompanyKeyword = true
				break
			}
		}
	}
	if !hasCompanyKeyword {
		return false
	}
	for _, k := range invalidNameKeywords {
		if strings.Contains(name, k) {
			return false
		}
	}
	return true
}
