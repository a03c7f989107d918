package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
)

var formulaReplacer = strings.NewReplacer(
	"评标基准价", "min_price",
	"基准价", "min_price",
	"最低投标报价", "min_price",
	"最低报价", "min_price",
	"投标报价", "price",
	"价格分值", "price_max_score",
	"价格分", "price_max_score",
	"×", "*",
	"＊", "*",
	"／", "/",
	"÷", "/",
	"（", "(",
	"）", ")",
	"＋", "+",
	"－", "-",
	"分", "",
)

// NormalizeFormula turns a price formula written in tender terms, like
// "投标报价得分＝(评标基准价／投标报价)×价格分值", into an expression over min_price, price and price_max_score.
func NormalizeFormula(formula string) string {
	formula = strings.TrimSpace(formula)
	if idx := strings.LastIndexAny(formula, "=＝"); idx >= 0 {
		_, size := firstRune(formula[idx:])
		formula = formula[idx+size:]
	}
	return strings.TrimSpace(formulaReplacer.Replace(formula))
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

// EvaluatePriceFormula runs the normalized formula. round, min and max are available as builtins.
func EvaluatePriceFormula(formula string, minPrice, price, priceMaxScore float64) (float64, error) {
	env := map[string]interface{}{
		"min_price":       minPrice,
		"price":           price,
		"price_max_score": priceMaxScore,
	}
	program, err := expr.Compile(formula, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return 0, fmt.Errorf("failed to compile price formula '%s': %w", formula, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate price formula '%s': %w", formula, err)
	}
	value, ok := out.(float64)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("price formula '%s' produced invalid value %v", formula, out)
	}
	return value, nil
}
